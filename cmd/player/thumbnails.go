package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chunk-player/internal/transcoder"
)

var thumbnailsJSON bool

func init() {
	thumbnailsCmd.Flags().BoolVar(&thumbnailsJSON, "json", false, "print the listing as JSON")
	rootCmd.AddCommand(thumbnailsCmd)
}

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "List the videos available on the transcoding service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := loadSettings()
		client := transcoder.New(s.TranscoderURL, s.logger(), transcoder.WithTimeout(s.RequestTimeout))

		thumbs, err := client.Thumbnails(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if thumbnailsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(thumbs)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VIDEO ID\tNAME\tTHUMBNAIL")
		for _, t := range thumbs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.VideoID, t.VideoName, t.ThumbnailURL)
		}
		return tw.Flush()
	},
}
