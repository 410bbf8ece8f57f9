package cli

import (
	"fmt"

	"github.com/fortuna/scorebook/internal/ingest/cricinfo"
	"github.com/fortuna/scorebook/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLeaderboardsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboards",
		Short: "Scrape the wicketkeeping and catches leaderboards",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var rows []store.LeaderboardRow
			for _, page := range cricinfo.LeaderboardPages(a.cfg.Site.BaseURL, a.cfg.Site.Tournament) {
				pageRows, err := ingester.Leaderboard(cmd.Context(), page)
				if err != nil {
					return fmt.Errorf("scraping %s: %w", page.Category, err)
				}
				if len(pageRows) == 0 {
					log.WithField("category", page.Category).Warn("leaderboard is empty")
				}
				rows = append(rows, pageRows...)
			}

			if err := sink.WriteLeaderboard(cmd.Context(), rows); err != nil {
				return fmt.Errorf("saving leaderboards: %w", err)
			}

			log.WithField("rows", len(rows)).Info("saved fielding leaderboards")
			return nil
		},
	}

	return cmd
}
