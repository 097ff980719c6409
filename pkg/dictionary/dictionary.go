// Package dictionary loads word lists with definitions and uses them to fill
// in definitions that upstream payloads leave out.
package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
)

// Entry is one glossary record.
type Entry struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// LoadGlossary reads a JSON glossary from path. Three shapes are accepted:
// a wrapper object {"words": [...]}, a bare array of entries, or a flat
// object mapping word to definition. Words are normalized and entries with an
// empty word or definition are skipped.
func LoadGlossary(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Words *[]Entry `json:"words"`
	}
	// Try parsing as full object wrapper first { "words": [...] }; an empty
	// list is still a wrapper.
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Words != nil {
		return clean(*wrapped.Words), nil
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return clean(entries), nil
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse glossary as wrapper, array or object: %w", err)
	}
	entries = make([]Entry, 0, len(flat))
	for w, d := range flat {
		entries = append(entries, Entry{Word: w, Definition: d})
	}
	// Map iteration is random; keep duplicate resolution deterministic.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Word < entries[j].Word })
	return clean(entries), nil
}

func clean(entries []Entry) []Entry {
	out := entries[:0]
	for _, e := range entries {
		e.Word = puzzle.NormalizeWord(e.Word)
		if e.Word == "" || e.Definition == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
