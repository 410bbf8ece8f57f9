// Package cricinfo renders and parses ESPNcricinfo tournament pages.
//
// ExtractScorecard turns a full-scorecard page into batting, bowling and
// fielding records. Innings are located by their rounded panels, the first
// table of a panel is the batting card and the last is the bowling card.
// Fielding credits are derived from dismissal text by ClassifyDismissal,
// which is independent of any markup. DiscoverLinks, ParseResults and
// ParseLeaderboard cover the index and records pages.
//
// Rendering is behind the Fetcher interface; Client implements it with
// headless Chrome and a bounded wait for a readiness selector. Partial pages
// are parsed on a best-effort basis: rows with too few cells are dropped and
// missing sections simply produce no records.
package cricinfo
