package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dealradar/internal/api"
	"dealradar/internal/ranking"
)

func newCompaniesCommand(ctx *commandContext) *cobra.Command {
	var minScore int
	var limit int

	cmd := &cobra.Command{
		Use:   "companies",
		Short: "List scored companies, highest score first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.Companies(cmd.Context(), minScore, limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.CompanyListResponse{Companies: entries})
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No scored companies")
				return nil
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#", "Company", "ID", "Score", "Hits", "Docs", "Latest", "Top signal", "Scored"},
				companyRows(entries),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Only companies scoring at least this much")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of companies (0 for all)")
	return cmd
}

func companyRows(entries []ranking.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Rank),
			truncate(e.Name, 32),
			e.CompanyID,
			strconv.Itoa(e.Score),
			count(e.Hits),
			strconv.Itoa(e.Documents),
			valueOrDash(e.LatestYear),
			valueOrDash(e.TopCategory),
			relativeTimeValue(e.ComputedAt),
		})
	}
	return rows
}

func newCompanyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "company <company id>",
		Short: "Show a company's score breakdown and yearly trend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			detail, err := client.Company(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, detail)
			}
			printCompany(cmd, detail)
			return nil
		},
	}
}

func printCompany(cmd *cobra.Command, detail api.CompanyDetail) {
	out := cmd.OutOrStdout()
	company, result := detail.Company, detail.Result
	fmt.Fprintf(out, "%s (%s)\n", company.Name, company.ID)
	if company.Website != "" {
		fmt.Fprintf(out, "Website: %s\n", company.Website)
	}
	if company.IRURL != "" {
		fmt.Fprintf(out, "IR page: %s\n", company.IRURL)
	}
	if result == nil {
		fmt.Fprintln(out, "Not scored yet")
		return
	}
	fmt.Fprintf(out, "Score:   %d (raw %d, penalty %d)\n", result.Score, result.Raw, result.Penalty)
	if len(result.Suppressors) > 0 {
		fmt.Fprintf(out, "Suppressed by: %s\n", strings.Join(result.Suppressors, ", "))
	}
	fmt.Fprintf(out, "Scored:  %s (catalog %s)\n\n", relativeTimeValue(result.ComputedAt), result.CatalogVersion)

	rows := make([][]string, 0, len(result.Categories))
	for _, c := range result.Categories {
		if c.Hits == 0 {
			continue
		}
		rows = append(rows, []string{c.Label, count(c.Hits), strconv.Itoa(c.Weight), strconv.Itoa(c.Contribution)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out,
			[]string{"Signal", "Hits", "Weight", "Points"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		))
	}

	if len(result.Years) > 0 {
		years := make([][]string, 0, len(result.Years))
		for _, y := range result.Years {
			years = append(years, []string{y.Year, count(y.Hits), strconv.Itoa(y.Raw), strconv.Itoa(y.Score)})
		}
		fmt.Fprintln(out, renderTable(out,
			[]string{"Year", "Hits", "Raw", "Score"},
			years,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		))
	}
}

func newEvidenceCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "evidence <company id>",
		Short: "Show the report excerpts behind a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Evidence(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s scored %d\n", resp.CompanyID, resp.Score)
			if len(resp.Groups) == 0 {
				fmt.Fprintln(out, "No evidence")
				return nil
			}
			for _, group := range resp.Groups {
				fmt.Fprintf(out, "\n%s (%s hits)\n", group.Label, count(group.Hits))
				for _, item := range group.Items {
					fmt.Fprintf(out, "  [%s %s] %q: %s\n", valueOrDash(item.Year), item.Filename, item.Keyword, truncate(item.Snippet, 160))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultEvidenceLimit, "Excerpts per signal category")
	return cmd
}

func newRelevanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "relevance <company id>",
		Short: "Have the language model discard false-positive signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Relevance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Score %d -> %d (%d of %d signals judged false positives)\n",
				resp.OriginalScore, resp.AdjustedScore, resp.FalsePositives, resp.Total)
			rows := make([][]string, 0, len(resp.Signals))
			for _, v := range resp.Signals {
				rows = append(rows, []string{v.Label, v.Keyword, valueOrDash(v.Year), yesNo(v.Relevant), truncate(valueOrDash(v.Reason), 60)})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(out, []string{"Signal", "Keyword", "Year", "Real", "Reason"}, rows, nil))
			}
			return nil
		},
	}
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report <company id>",
		Short: "Write an analyst report grounded on the evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s\n", resp.Company, strings.TrimSpace(resp.Report))
			printSources(cmd, resp.Sources)
			return nil
		},
	}
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var companyID string

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question answered from indexed report passages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Chat(cmd.Context(), api.ChatRequest{
				Message:   strings.Join(args, " "),
				CompanyID: companyID,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(resp.Answer))
			printSources(cmd, resp.Sources)
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "Restrict retrieval to one company id")
	return cmd
}

func printSources(cmd *cobra.Command, sources []api.Source) {
	if len(sources) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nSources:")
	for i, src := range sources {
		name := src.Company
		if name == "" {
			name = src.CompanyID
		}
		label := strings.TrimSpace(strings.Join([]string{name, src.Year, src.Filename}, " "))
		fmt.Fprintf(out, "  [%d] %s: %s\n", i+1, label, truncate(src.Excerpt, 120))
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
