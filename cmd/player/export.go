package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chunk-player/internal/metricstore"
)

var exportFlags struct {
	out    string
	stdout bool
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.out, "out", ".", "directory the CSV file is saved to")
	exportCmd.Flags().BoolVar(&exportFlags.stdout, "stdout", false, "write the CSV to stdout instead of a file")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <video-id>",
	Short: "Export the stored chunk telemetry of a video as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		store, err := metricstore.Open(s.DBPath, metricstore.WithLogger(s.logger()))
		if err != nil {
			return err
		}
		defer store.Close()

		if exportFlags.stdout {
			return store.ExportCSV(args[0], cmd.OutOrStdout())
		}
		path, err := store.SaveCSV(args[0], exportFlags.out)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
