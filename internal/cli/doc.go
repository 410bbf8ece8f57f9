// Package cli implements the scorebook command line.
//
// Each subcommand covers one stage of collecting a tournament's records from
// ESPNcricinfo: discovering scorecard links, scraping the results index,
// scraping scorecards in a resumable batch, scraping the fielding
// leaderboards, and serving stored records over HTTP. Configuration comes
// from internal/config; the --config and --log-level flags apply to every
// subcommand.
package cli
