package cli

import (
	"fmt"

	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newResultsCmd(a *app) *cobra.Command {
	var resultsURL string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Scrape the tournament results table",
		Long: `Scrape the tournament results table into the configured sink. The CSV
output (match_results.csv) is replaced on every run and its "Scorecard Link"
column can be fed to "scorebook scorecards --results".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resultsURL == "" {
				resultsURL = cricinfo.ResultsURL(a.cfg.Site.BaseURL, a.cfg.Site.Tournament)
			}

			var done cleanup
			defer done.run()

			sink, _, err := openSink(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer sink.Close()

			ingester, err := newIngester(a.cfg, openCache(cmd.Context(), a.cfg, &done), &done)
			if err != nil {
				return err
			}

			results, err := ingester.Results(cmd.Context(), resultsURL)
			if err != nil {
				return fmt.Errorf("scraping results: %w", err)
			}
			if len(results) == 0 {
				log.WithField("url", resultsURL).Warn("no results found")
				return nil
			}

			if err := sink.WriteResults(cmd.Context(), results); err != nil {
				return fmt.Errorf("saving results: %w", err)
			}

			log.WithField("count", len(results)).Info("saved match results")
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsURL, "url", "", "Results index URL (default: the configured tournament's results page)")

	return cmd
}
