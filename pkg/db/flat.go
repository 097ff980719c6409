package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
)

// WordDelimiter joins sides and solution words in the flat layout. Readers
// must split on exactly this value.
const WordDelimiter = ","

// JoinWords encodes words for a flat column. A word containing the delimiter
// cannot round-trip and is rejected.
func JoinWords(words []string) (string, error) {
	for _, w := range words {
		if strings.Contains(w, WordDelimiter) {
			return "", fmt.Errorf("%q contains delimiter %q", w, WordDelimiter)
		}
	}
	return strings.Join(words, WordDelimiter), nil
}

// SplitWords decodes a flat column written by JoinWords.
func SplitWords(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	return strings.Split(s, WordDelimiter), nil
}

// ReplaceFlatPuzzle stores date in the flat layout, replacing any previous rows.
// Solution words are also registered in the shared words table so dictionary
// tooling sees them regardless of layout.
func ReplaceFlatPuzzle(ctx context.Context, db DBExecutor, date string, sides []string, solutions [][]string) error {
	joinedSides, err := JoinWords(sides)
	if err != nil {
		return fmt.Errorf("encode sides %s: %w", date, err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO flat_sides (date, sides) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET sides = excluded.sides`, date, joinedSides); err != nil {
		return fmt.Errorf("upsert flat sides %s: %w", date, err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM flat_solutions WHERE date = ?`, date); err != nil {
		return fmt.Errorf("delete flat solutions %s: %w", date, err)
	}
	for pos, words := range solutions {
		joined, err := JoinWords(words)
		if err != nil {
			return fmt.Errorf("encode solution %s/%d: %w", date, pos, err)
		}
		for _, w := range words {
			if err := EnsureWord(ctx, db, w); err != nil {
				return err
			}
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO flat_solutions (date, position, words) VALUES (?, ?, ?)`,
			date, pos, joined); err != nil {
			return fmt.Errorf("insert flat solution %s/%d: %w", date, pos, err)
		}
	}
	return nil
}

// LoadFlatPuzzles reconstructs puzzles from the flat layout, newest first.
func LoadFlatPuzzles(ctx context.Context, db DBExecutor, maxDate string) ([]puzzle.Puzzle, error) {
	sides, err := loadSides(ctx, db, `SELECT date, sides FROM flat_sides
		WHERE (? = '' OR date <= ?) ORDER BY date DESC`, maxDate, SplitWords)
	if err != nil {
		return nil, err
	}
	byDate, err := loadFlatSolutions(ctx, db, maxDate)
	if err != nil {
		return nil, err
	}
	return assemble(sides, byDate)
}

// LoadFlatDefinitions is LoadDefinitions for the flat layout. The bounded case
// splits the stored solutions in Go and matches the words through json_each.
func LoadFlatDefinitions(ctx context.Context, db DBExecutor, maxDate string) (map[string]string, error) {
	if maxDate == "" {
		return LoadDefinitions(ctx, db, "")
	}
	byDate, err := loadFlatSolutions(ctx, db, maxDate)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	words := []string{}
	for _, sols := range byDate {
		for _, sol := range sols {
			for _, w := range sol {
				if _, ok := seen[w]; !ok {
					seen[w] = struct{}{}
					words = append(words, w)
				}
			}
		}
	}
	if len(words) == 0 {
		return map[string]string{}, nil
	}
	encoded, err := json.Marshal(words)
	if err != nil {
		return nil, err
	}
	return queryDefinitions(ctx, db, `SELECT text, definition FROM words
		WHERE text IN (SELECT value FROM json_each(?))
		  AND definition IS NOT NULL AND definition <> ''`, string(encoded))
}

func loadFlatSolutions(ctx context.Context, db DBExecutor, maxDate string) (map[string][][]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT date, words FROM flat_solutions
		WHERE (? = '' OR date <= ?) ORDER BY date DESC, position`, maxDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("query flat solutions: %w", err)
	}
	defer rows.Close()
	byDate := make(map[string][][]string)
	for rows.Next() {
		var date, joined string
		if err := rows.Scan(&date, &joined); err != nil {
			return nil, err
		}
		words, err := SplitWords(joined)
		if err != nil {
			return nil, err
		}
		byDate[date] = append(byDate[date], words)
	}
	return byDate, rows.Err()
}
