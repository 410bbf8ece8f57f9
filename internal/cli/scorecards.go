package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/fortuna/scorebook/internal/publisher"
	"github.com/fortuna/scorebook/internal/store"
	"github.com/spf13/cobra"
)

// ScorecardLinkColumn is the results CSV column holding scorecard URLs
const ScorecardLinkColumn = "Scorecard Link"

func newScorecardsCmd(a *app) *cobra.Command {
	var (
		linksPath   string
		resultsPath string
		dryRun      bool
		maxRetries  uint64
	)

	cmd := &cobra.Command{
		Use:   "scorecards [url...]",
		Short: "Scrape match scorecards in a resumable batch",
		Long: `Scrape batting, bowling and fielding records from each scorecard URL.

URLs come from the arguments, a links file (--links) and the "Scorecard
Link" column of a results CSV (--results). With none of these, the results
file in the output directory is used. Matches already in the output are
skipped, so an interrupted batch can simply be rerun.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-retries") {
				maxRetries = a.cfg.Batch.MaxRetries
			}
			if linksPath == "" && resultsPath == "" && len(args) == 0 {
				resultsPath = filepath.Join(a.cfg.Output.Dir, store.ResultsFile)
			}

			urls, err := collectURLs(args, linksPath, resultsPath)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return errors.New("no scorecard urls to scrape")
			}

			var done cleanup
			defer done.run()

			sink, _, err := openSink(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer sink.Close()

			rc := openCache(cmd.Context(), a.cfg, &done)
			ingester, err := newIngester(a.cfg, rc, &done)
			if err != nil {
				return err
			}

			reporter := backfill.MultiReporter{newConsoleReporter(nil)}
			if rc != nil {
				reporter = append(reporter, publisher.NewRedisPublisher(rc.Client(), a.cfg.Redis.Stream))
			}

			runner := backfill.NewRunner(ingester, sink)
			_, err = runner.Run(cmd.Context(), backfill.JobSpec{
				URLs:       urls,
				DryRun:     dryRun,
				MaxRetries: maxRetries,
			}, reporter)
			return err
		},
	}

	cmd.Flags().StringVar(&linksPath, "links", "", "File of scorecard URLs, one per line")
	cmd.Flags().StringVar(&resultsPath, "results", "", "Results CSV whose \"Scorecard Link\" column lists scorecard URLs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and extract without writing any output")
	cmd.Flags().Uint64Var(&maxRetries, "max-retries", backfill.DefaultMaxRetries, "Retries per page after a fetch failure")

	return cmd
}

// collectURLs merges URLs from arguments, a links file and a results CSV,
// in that order
func collectURLs(args []string, linksPath, resultsPath string) ([]string, error) {
	urls := append([]string(nil), args...)

	if linksPath != "" {
		f, err := os.Open(linksPath)
		if err != nil {
			return nil, err
		}
		links, err := readLinks(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", linksPath, err)
		}
		urls = append(urls, links...)
	}

	if resultsPath != "" {
		links, err := store.ReadColumn(resultsPath, ScorecardLinkColumn)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("results file %s not found, run \"scorebook results\" first", resultsPath)
		}
		if err != nil {
			return nil, err
		}
		urls = append(urls, links...)
	}

	return urls, nil
}
