package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	"github.com/spf13/cobra"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		file      string
		sourceURL string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a saved scorecard page and print it as JSON",
		Long: `Run the scorecard extractor over an HTML file saved from a browser. No
browser is started and nothing is written. --url supplies the page address
the match ID is read from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			card, err := cricinfo.ParseScorecard(f, sourceURL)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(card); err != nil {
				return fmt.Errorf("encoding scorecard: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Saved scorecard HTML file (required)")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Page URL the file was saved from")
	cmd.MarkFlagRequired("file")

	return cmd
}
