package cricinfo

import (
	"regexp"
	"strings"

	"github.com/fortuna/scorebook/internal/store"
)

// FieldingCredit is one fielder's share of a dismissal, before it is tied to
// a match and batter.
type FieldingCredit struct {
	Fielder string
	Mode    store.FieldingMode
}

var (
	// "c Pant b Ashwin", "c †Saha b Jadeja", "c sub (Rahane) b Umesh"
	caughtPattern = regexp.MustCompile(`^c\s+(.+?)\s+b\s+\S`)
	// "c & b Jadeja": caught by the bowler
	caughtAndBowledPattern = regexp.MustCompile(`^c\s*&\s*b\s+(.+)$`)
	stumpedPattern         = regexp.MustCompile(`^st\s+(.+?)\s+b\s+\S`)
	runOutPattern          = regexp.MustCompile(`run out\s*\(([^)]*)\)`)
)

// ClassifyDismissal derives the fielding credits contained in a dismissal
// text. All three patterns are tried; bowled, lbw, not out and similar
// dismissals yield nothing.
func ClassifyDismissal(dismissal string) []FieldingCredit {
	text := strings.TrimSpace(dismissal)
	if text == "" {
		return nil
	}

	var credits []FieldingCredit

	if m := caughtAndBowledPattern.FindStringSubmatch(text); m != nil {
		if name := cleanFielderName(m[1]); name != "" {
			credits = append(credits, FieldingCredit{Fielder: name, Mode: store.FieldingCatch})
		}
	} else if m := caughtPattern.FindStringSubmatch(text); m != nil {
		if name := cleanFielderName(m[1]); name != "" {
			credits = append(credits, FieldingCredit{Fielder: name, Mode: store.FieldingCatch})
		}
	}

	if m := stumpedPattern.FindStringSubmatch(text); m != nil {
		if name := cleanFielderName(m[1]); name != "" {
			credits = append(credits, FieldingCredit{Fielder: name, Mode: store.FieldingStumping})
		}
	}

	if m := runOutPattern.FindStringSubmatch(text); m != nil {
		for _, part := range strings.Split(m[1], "/") {
			if name := cleanFielderName(part); name != "" {
				credits = append(credits, FieldingCredit{Fielder: name, Mode: store.FieldingRunOut})
			}
		}
	}

	return credits
}

// FieldingEvents ties the credits of one batter's dismissal to the match.
func FieldingEvents(id store.MatchIdentity, batter, dismissal string) []store.FieldingEvent {
	credits := ClassifyDismissal(dismissal)
	if len(credits) == 0 {
		return nil
	}

	events := make([]store.FieldingEvent, 0, len(credits))
	for _, c := range credits {
		events = append(events, store.FieldingEvent{
			MatchIdentity:   id,
			Fielder:         c.Fielder,
			Mode:            c.Mode,
			DismissedPlayer: batter,
		})
	}
	return events
}

// cleanFielderName drops the keeper dagger and surrounding whitespace
func cleanFielderName(name string) string {
	name = strings.ReplaceAll(name, "†", "")
	return strings.Join(strings.Fields(name), " ")
}
