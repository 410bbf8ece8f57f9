package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultLinksFile holds discovered scorecard links, one per line
const DefaultLinksFile = "match_links.txt"

func newLinksCmd(a *app) *cobra.Command {
	var (
		indexURL string
		outPath  string
		trim     int
	)

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Discover scorecard links on the tournament results index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexURL == "" {
				indexURL = cricinfo.ResultsURL(a.cfg.Site.BaseURL, a.cfg.Site.Tournament)
			}
			if !cmd.Flags().Changed("trim") {
				trim = a.cfg.Batch.Trim
			}

			var done cleanup
			defer done.run()

			ingester, err := newIngester(a.cfg, openCache(cmd.Context(), a.cfg, &done), &done)
			if err != nil {
				return err
			}

			links, err := ingester.Links(cmd.Context(), indexURL, trim)
			if err != nil {
				return fmt.Errorf("discovering links: %w", err)
			}

			if outPath == "-" {
				return writeLinks(cmd.OutOrStdout(), links)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := writeLinks(f, links); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			log.WithFields(log.Fields{"count": len(links), "file": outPath}).Info("saved scorecard links")
			return nil
		},
	}

	cmd.Flags().StringVar(&indexURL, "url", "", "Results index URL (default: the configured tournament's results page)")
	cmd.Flags().StringVarP(&outPath, "out", "o", DefaultLinksFile, "Output file, or - for stdout")
	cmd.Flags().IntVar(&trim, "trim", cricinfo.DefaultTrailingNoise, "Drop this many trailing non-match links")

	return cmd
}

func writeLinks(w io.Writer, links []string) error {
	bw := bufio.NewWriter(w)
	for _, link := range links {
		if _, err := fmt.Fprintln(bw, link); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readLinks returns the non-blank lines of a links file, skipping # comments
func readLinks(r io.Reader) ([]string, error) {
	var links []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	return links, scanner.Err()
}
