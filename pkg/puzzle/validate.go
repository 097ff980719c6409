package puzzle

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Payload is the upstream JSON document for one day.
type Payload struct {
	Date        string            `json:"date"`
	Sides       []string          `json:"sides"`
	Solutions   [][]string        `json:"solutions"`
	Definitions map[string]string `json:"definitions,omitempty"`
}

// ValidationError reports a payload that must be rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Decode reads a single payload from r and normalizes it.
func Decode(r io.Reader) (Update, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Update{}, &ValidationError{Field: "body", Reason: err.Error()}
	}
	return p.Normalize()
}

// Normalize validates the payload and converts it into an Update.
// Words and definition keys are trimmed and lowercased; empty definitions are
// dropped so they never overwrite a stored one.
func (p Payload) Normalize() (Update, error) {
	if strings.TrimSpace(p.Date) == "" {
		return Update{}, invalid("date", "missing")
	}
	date, err := ParseDate(p.Date)
	if err != nil {
		return Update{}, invalid("date", "%v", err)
	}

	if len(p.Sides) == 0 {
		return Update{}, invalid("sides", "must not be empty")
	}
	sides := make([]string, len(p.Sides))
	for i, s := range p.Sides {
		s = strings.TrimSpace(s)
		if s == "" {
			return Update{}, invalid(fmt.Sprintf("sides[%d]", i), "must not be empty")
		}
		if strings.ContainsAny(s, ", \t\n") {
			return Update{}, invalid(fmt.Sprintf("sides[%d]", i), "must contain letters only, got %q", s)
		}
		sides[i] = s
	}

	solutions := make([][]string, len(p.Solutions))
	for i, sol := range p.Solutions {
		field := fmt.Sprintf("solutions[%d]", i)
		if len(sol) == 0 {
			return Update{}, invalid(field, "must not be empty")
		}
		seen := make(map[string]struct{}, len(sol))
		words := make([]string, len(sol))
		for j, w := range sol {
			w = NormalizeWord(w)
			if err := checkWord(w); err != nil {
				return Update{}, invalid(fmt.Sprintf("%s[%d]", field, j), "%v", err)
			}
			if _, dup := seen[w]; dup {
				return Update{}, invalid(field, "word %q repeated", w)
			}
			seen[w] = struct{}{}
			words[j] = w
		}
		solutions[i] = words
	}

	defs := make(map[string]string, len(p.Definitions))
	for k, v := range p.Definitions {
		k = NormalizeWord(k)
		if k == "" {
			return Update{}, invalid("definitions", "empty word key")
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		defs[k] = v
	}

	return Update{
		Puzzle:      Puzzle{Date: date, Sides: sides, Solutions: solutions},
		Definitions: defs,
	}, nil
}

// Validate checks an Update built in code rather than decoded from JSON.
func (u Update) Validate() error {
	_, err := u.Normalize()
	return err
}

// Normalize validates an Update built in code and returns the form that is
// written to a store: trimmed sides, lowercase words and definition keys.
func (u Update) Normalize() (Update, error) {
	p := Payload{
		Date:        FormatDate(u.Date),
		Sides:       u.Sides,
		Solutions:   u.Solutions,
		Definitions: u.Definitions,
	}
	if u.Date.IsZero() {
		p.Date = ""
	}
	return p.Normalize()
}

// NormalizeWord trims and lowercases w.
func NormalizeWord(w string) string { return strings.ToLower(strings.TrimSpace(w)) }

func checkWord(w string) error {
	if w == "" {
		return fmt.Errorf("empty word")
	}
	for _, r := range w {
		if !unicode.IsLetter(r) || !unicode.IsLower(r) {
			return fmt.Errorf("word %q must be lowercase letters only", w)
		}
	}
	return nil
}
