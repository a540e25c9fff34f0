package cmd

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/cwtrainer/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent practice sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadSettings(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := history.Open(cfg.HistoryFile(), cfg.HistoryLimit)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer func() { _ = store.Close() }()

			results, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No sessions recorded yet.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Ended", "WPM", "Group", "Heard", "Score", "Status"})
			for _, r := range results {
				score := "-"
				if r.Score != nil {
					score = fmt.Sprintf("%d/%d (%d%%)", r.Score.Correct, r.Score.Total, r.Score.Percentage)
				}
				status := "stopped"
				if r.Completed {
					status = "complete"
				}
				t.AppendRow(table.Row{
					r.EndedAt.Local().Format("2006-01-02 15:04"),
					r.WPM,
					r.GroupSize,
					len([]rune(r.Played)),
					score,
					status,
				})
			}
			t.Render()

			total, err := store.Count(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nShowing %d of %d sessions\n", len(results), total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of sessions to show")
	return cmd
}
