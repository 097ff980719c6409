// Package puzzle holds the Letter Boxed domain model shared by every store:
// one day's sides, its ordered solutions and the definitions supplied with it.
package puzzle

import (
	"encoding/json"
	"sort"
	"time"
)

// Puzzle is one day's side letters plus its valid word solutions.
// Word order inside each solution is significant.
type Puzzle struct {
	Date      time.Time
	Sides     []string
	Solutions [][]string
}

// Update is the input of an upsert: a puzzle and the definitions that came with it.
type Update struct {
	Puzzle
	Definitions map[string]string
}

// Filter bounds read operations. A zero MaxDate means unbounded.
type Filter struct {
	MaxDate time.Time
}

// Bounded reports whether the filter restricts results to MaxDate and earlier.
func (f Filter) Bounded() bool { return !f.MaxDate.IsZero() }

// Includes reports whether a puzzle dated d passes the filter.
func (f Filter) Includes(d time.Time) bool {
	return !f.Bounded() || !Day(d).After(Day(f.MaxDate))
}

// Until returns a filter bounded at maxDate.
func Until(maxDate time.Time) Filter { return Filter{MaxDate: Day(maxDate)} }

type puzzleJSON struct {
	Date      string     `json:"date"`
	Sides     []string   `json:"sides"`
	Solutions [][]string `json:"solutions"`
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (p Puzzle) MarshalJSON() ([]byte, error) {
	return json.Marshal(puzzleJSON{Date: FormatDate(p.Date), Sides: p.Sides, Solutions: nonNil(p.Solutions)})
}

// UnmarshalJSON reads the YYYY-MM-DD date written by MarshalJSON.
func (p *Puzzle) UnmarshalJSON(b []byte) error {
	var raw puzzleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date, p.Sides, p.Solutions = d, raw.Sides, raw.Solutions
	return nil
}

// MarshalYAML mirrors MarshalJSON for the CLI's yaml output.
func (p Puzzle) MarshalYAML() (interface{}, error) {
	return struct {
		Date      string     `yaml:"date"`
		Sides     []string   `yaml:"sides,flow"`
		Solutions [][]string `yaml:"solutions"`
	}{FormatDate(p.Date), p.Sides, nonNil(p.Solutions)}, nil
}

// SortNewestFirst orders puzzles by strictly descending date.
func SortNewestFirst(ps []Puzzle) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.After(ps[j].Date) })
}

// Words returns the distinct words used across the puzzle's solutions in first-seen order.
func (p Puzzle) Words() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sol := range p.Solutions {
		for _, w := range sol {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// Clone returns a deep copy so stores never share slices with callers.
func (p Puzzle) Clone() Puzzle {
	out := Puzzle{Date: p.Date, Sides: append([]string(nil), p.Sides...)}
	out.Solutions = make([][]string, len(p.Solutions))
	for i, sol := range p.Solutions {
		out.Solutions[i] = append([]string(nil), sol...)
	}
	return out
}

func nonNil(s [][]string) [][]string {
	if s == nil {
		return [][]string{}
	}
	return s
}
