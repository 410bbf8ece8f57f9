package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Output files written by CSVSink
const (
	BattingFile     = "batting_data.csv"
	BowlingFile     = "bowling_data.csv"
	FieldingFile    = "fielding_data.csv"
	LeaderboardFile = "fielding_leaderboard.csv"
	ResultsFile     = "match_results.csv"
)

// MatchIDColumn is the header read back when resuming a batch
const MatchIDColumn = "Match ID"

var (
	BattingHeader = []string{
		"Match ID", "Match Title", "Innings", "Team", "Player", "Dismissal",
		"Runs", "Balls Faced", "Fours", "Sixes", "Strike Rate",
	}
	BowlingHeader = []string{
		"Match ID", "Match Title", "Innings", "Team", "Player",
		"Overs", "Maidens", "Runs Conceded", "Wickets", "Economy",
	}
	FieldingHeader    = []string{"Match ID", "Match Title", "Fielder", "Mode", "Dismissed Player"}
	LeaderboardHeader = []string{"Category", "Player", "Span", "Mat", "Ct", "St"}
	ResultsHeader     = []string{
		"Match Title", "Match ID", "Team 1", "Team 2", "Winner",
		"Margin", "Ground", "Match Date", "Scorecard Link",
	}
)

// CSVSink writes records to CSV files in one directory. Scorecard files are
// created with a header on first write and appended to afterwards; the
// leaderboard and results files are replaced on every write.
type CSVSink struct {
	mu  sync.Mutex
	dir string
}

// NewCSVSink creates dir if needed
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// Dir returns the output directory
func (s *CSVSink) Dir() string {
	return s.dir
}

// Path returns the full path of one output file
func (s *CSVSink) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *CSVSink) ScrapedMatchIDs(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]bool)
	for _, name := range []string{BattingFile, BowlingFile, FieldingFile} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := readColumn(s.Path(name), MatchIDColumn, ids); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return ids, nil
}

// WriteScorecard appends the batting, bowling and fielding rows of one
// match. It is all or nothing: if any file fails, the files already written
// are cut back to their previous length so the match is not seen as scraped.
func (s *CSVSink) WriteScorecard(ctx context.Context, card *Scorecard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batting := make([][]string, 0, len(card.Batting))
	for _, r := range card.Batting {
		batting = append(batting, []string{
			r.MatchID, r.MatchTitle, strconv.Itoa(r.Innings), r.Team, r.Player, r.Dismissal,
			r.Runs, r.BallsFaced, r.Fours, r.Sixes, r.StrikeRate,
		})
	}

	bowling := make([][]string, 0, len(card.Bowling))
	for _, r := range card.Bowling {
		bowling = append(bowling, []string{
			r.MatchID, r.MatchTitle, strconv.Itoa(r.Innings), r.Team, r.Player,
			r.Overs, r.Maidens, r.RunsConceded, r.Wickets, r.Economy,
		})
	}

	fielding := make([][]string, 0, len(card.Fielding))
	for _, e := range card.Fielding {
		fielding = append(fielding, []string{e.MatchID, e.MatchTitle, e.Fielder, string(e.Mode), e.DismissedPlayer})
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{BattingFile, BattingHeader, batting},
		{BowlingFile, BowlingHeader, bowling},
		{FieldingFile, FieldingHeader, fielding},
	}

	var touched []fileMark
	for _, f := range files {
		if len(f.rows) == 0 {
			continue
		}
		mark, err := markFile(s.Path(f.name))
		if err != nil {
			return errors.Join(err, restoreFiles(touched))
		}
		touched = append(touched, mark)
		if err := appendRows(mark.path, f.header, f.rows); err != nil {
			return errors.Join(err, restoreFiles(touched))
		}
	}
	return nil
}

// fileMark records the length of a file before an append
type fileMark struct {
	path    string
	existed bool
	size    int64
}

func markFile(path string) (fileMark, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileMark{path: path}, nil
	}
	if err != nil {
		return fileMark{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return fileMark{path: path, existed: true, size: info.Size()}, nil
}

// restoreFiles removes files created since marking and truncates the others
// back to their marked length
func restoreFiles(marks []fileMark) error {
	var errs []error
	for _, m := range marks {
		var err error
		if m.existed {
			err = os.Truncate(m.path, m.size)
		} else {
			err = os.Remove(m.path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("restore %s: %w", m.path, err))
		}
	}
	return errors.Join(errs...)
}

func (s *CSVSink) WriteLeaderboard(ctx context.Context, rows []LeaderboardRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{string(r.Category), r.Player, r.Span, r.Matches, r.Catches, r.Stumpings})
	}
	return replaceRows(s.Path(LeaderboardFile), LeaderboardHeader, records)
}

func (s *CSVSink) WriteResults(ctx context.Context, results []MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, []string{
			r.MatchTitle, r.MatchID, r.Team1, r.Team2, r.Winner,
			r.Margin, r.Ground, r.MatchDate, r.ScorecardLink,
		})
	}
	return replaceRows(s.Path(ResultsFile), ResultsHeader, records)
}

func (s *CSVSink) Close() error {
	return nil
}

// appendRows appends to path, writing header first when the file is new or empty
func appendRows(path string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	writeHeader := false
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeHeader = true
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case info.Size() == 0:
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if err := writeRows(f, header, rows, writeHeader); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// replaceRows rewrites path with header and rows
func replaceRows(path string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := writeRows(f, header, rows, true); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeRows(w io.Writer, header []string, rows [][]string, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	// WriteAll flushes
	return cw.WriteAll(rows)
}

// errNoColumn is returned by ReadColumn when the header lacks the column
var errNoColumn = errors.New("column not found")

// readColumn adds every value of the named column in path to into. A
// missing or empty file, or a missing column, adds nothing.
func readColumn(path, column string, into map[string]bool) error {
	values, err := ReadColumn(path, column)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, io.EOF) || errors.Is(err, errNoColumn) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, v := range values {
		into[v] = true
	}
	return nil
}

// ReadColumn returns the non-empty values of one column of a CSV file in
// order, e.g. the "Scorecard Link" column of a results file.
func ReadColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	idx := -1
	for i, name := range header {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %q: %w", path, column, errNoColumn)
	}

	var values []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if idx < len(rec) && rec[idx] != "" {
			values = append(values, rec[idx])
		}
	}
}
