package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio playback devices",
		Long:  `Lists playback devices with the index to use for --device or device_index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := audio.ListDevices()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Index", "Device"})
			for i, name := range names {
				t.AppendRow(table.Row{i, name})
			}
			t.Render()
			return nil
		},
	}
}
