package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"dealradar/internal/preflight"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored companies, documents and scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Metric", "Value"},
				[][]string{
					{"Companies", count(stats.Companies)},
					{"Scored companies", count(stats.ScoredCompanies)},
					{"Average score", fmt.Sprintf("%.1f", stats.AverageScore)},
					{"Documents", count(stats.Documents)},
					{"Superseded documents", count(stats.Superseded)},
					{"Text chunks", count(stats.Chunks)},
					{"Indexed chunks", count(stats.IndexedChunks)},
					{"Tasks", count(stats.Tasks)},
					{"Signal categories", fmt.Sprintf("%d (catalog %s)", stats.Signals, valueOrDash(stats.CatalogVersion))},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workflow status and stage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			state := "stopped"
			if status.Running {
				state = "running"
			}
			fmt.Fprintf(out, "Workflow: %s, %d/%d workers busy\n", state, status.Busy, status.Workers)

			statuses := make([]string, 0, len(status.TaskCounts))
			for name := range status.TaskCounts {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			fmt.Fprint(out, "Tasks:")
			for _, name := range statuses {
				fmt.Fprintf(out, " %s=%d", name, status.TaskCounts[name])
			}
			fmt.Fprintln(out)
			if status.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", status.LastError)
			}

			rows := make([][]string, 0, len(status.StageHealth))
			for i, health := range status.StageHealth {
				rows = append(rows, []string{strconv.Itoa(i + 1), health.Name, yesNo(health.Ready), valueOrDash(health.Detail)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#", "Stage", "Ready", "Detail"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, binaries, the LLM and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			client, err := ctx.client()
			if err != nil {
				return err
			}
			results = append(results, preflight.CheckDaemon(cmd.Context(), client))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					switch {
					case !r.Passed && r.Optional:
						state = "warn"
					case !r.Passed:
						state = "FAIL"
					}
					rows = append(rows, []string{r.Name, state, r.Detail})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Check", "Result", "Detail"}, rows, nil))
			}
			if preflight.Failed(results) {
				return fmt.Errorf("one or more required checks failed")
			}
			return nil
		},
	}
}
