package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dealradar/internal/catalog"
	"dealradar/internal/scoring"
	"dealradar/internal/searchindex"
	"dealradar/internal/store"
)

type rescanOutcome struct {
	CompanyID string `json:"company_id"`
	Score     int    `json:"score"`
	Previous  *int   `json:"previous_score,omitempty"`
	Hits      int    `json:"hits"`
	Documents int    `json:"documents"`
	Indexed   int    `json:"indexed_chunks,omitempty"`
}

func newRescanCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var reindex bool

	cmd := &cobra.Command{
		Use:   "rescan [company id...]",
		Short: "Rescore stored documents without the daemon",
		Long: "Rescan runs the signal scan against the documents already in the database, " +
			"for example after editing the signal catalog. No network access is needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one company id or pass --all")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Paths.CatalogPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ids := args
			if all {
				companies, err := st.Companies(cmd.Context())
				if err != nil {
					return err
				}
				ids = ids[:0:0]
				for _, c := range companies {
					ids = append(ids, c.ID)
				}
			}

			engine := scoring.NewEngine(cat, st)
			outcomes := make([]rescanOutcome, 0, len(ids))
			for _, id := range ids {
				outcome, err := rescanCompany(cmd.Context(), st, engine, id, reindex)
				if err != nil {
					return fmt.Errorf("rescan %s: %w", id, err)
				}
				outcomes = append(outcomes, outcome)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, outcomes)
			}
			out := cmd.OutOrStdout()
			if len(outcomes) == 0 {
				fmt.Fprintln(out, "No companies stored")
				return nil
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				previous := "-"
				if o.Previous != nil {
					previous = strconv.Itoa(*o.Previous)
				}
				rows = append(rows, []string{o.CompanyID, previous, strconv.Itoa(o.Score), count(o.Hits), strconv.Itoa(o.Documents)})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Company", "Before", "After", "Hits", "Docs"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Rescan every stored company")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Also rebuild the full-text index")
	return cmd
}

func rescanCompany(ctx context.Context, st *store.Store, engine *scoring.Engine, id string, reindex bool) (rescanOutcome, error) {
	outcome := rescanOutcome{CompanyID: id}
	if previous, err := st.Result(ctx, id); err == nil {
		score := previous.Score
		outcome.Previous = &score
	}

	result, err := engine.Scan(ctx, id)
	if err != nil {
		return outcome, err
	}
	if err := st.SaveResult(ctx, result); err != nil {
		return outcome, err
	}
	outcome.Score = result.Score
	outcome.Hits = result.TotalHits()
	outcome.Documents = len(result.Documents)

	if reindex {
		entries, _, err := searchindex.Entries(ctx, st, id)
		if err != nil {
			return outcome, err
		}
		if err := st.ReplaceIndex(ctx, id, entries); err != nil {
			return outcome, err
		}
		outcome.Indexed = len(entries)
	}
	return outcome, nil
}
