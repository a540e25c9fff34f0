package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/cwtrainer/internal/practice"
)

func newLessonsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lessons",
		Short: "List the available lessons",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadSettings(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			lessons, err := practice.LoadLessons(cfg.LessonsFile)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"", "ID", "Name", "Characters"})
			for _, l := range lessons {
				marker := ""
				if l.ID == cfg.Lesson && cfg.Charset == "" {
					marker = "*"
				}
				t.AppendRow(table.Row{marker, l.ID, l.Name, l.Chars})
			}
			t.Render()
			return nil
		},
	}
}
