package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
)

// LoadPuzzles reconstructs puzzles from the normalized tables, newest first.
// maxDate is YYYY-MM-DD or "" for no bound.
func LoadPuzzles(ctx context.Context, db DBExecutor, maxDate string) ([]puzzle.Puzzle, error) {
	sides, err := loadSides(ctx, db, `SELECT date, sides FROM sides
		WHERE (? = '' OR date <= ?) ORDER BY date DESC`, maxDate, decodeJSONSides)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT so.date, so.id, sw.word
		FROM solutions so
		JOIN solution_words sw ON sw.solution_id = so.id
		WHERE (? = '' OR so.date <= ?)
		ORDER BY so.date DESC, so.position, sw.ord`, maxDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string][][]string)
	var lastID int64
	for rows.Next() {
		var date, word string
		var id int64
		if err := rows.Scan(&date, &id, &word); err != nil {
			return nil, err
		}
		sols := byDate[date]
		if id != lastID || len(sols) == 0 {
			sols = append(sols, nil)
			lastID = id
		}
		sols[len(sols)-1] = append(sols[len(sols)-1], word)
		byDate[date] = sols
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assemble(sides, byDate)
}

// LoadDefinitions returns stored definitions. With a maxDate only words used by
// solutions dated maxDate or earlier are included. Words without a definition
// are absent.
func LoadDefinitions(ctx context.Context, db DBExecutor, maxDate string) (map[string]string, error) {
	if maxDate == "" {
		return queryDefinitions(ctx, db, `SELECT text, definition FROM words
			WHERE definition IS NOT NULL AND definition <> ''`)
	}
	return queryDefinitions(ctx, db, `SELECT DISTINCT w.text, w.definition
		FROM solutions so
		JOIN solution_words sw ON sw.solution_id = so.id
		JOIN words w ON w.text = sw.word
		WHERE so.date <= ? AND w.definition IS NOT NULL AND w.definition <> ''`, maxDate)
}

func decodeJSONSides(raw string) ([]string, error) {
	var sides []string
	err := json.Unmarshal([]byte(raw), &sides)
	return sides, err
}

func loadSides(ctx context.Context, db DBExecutor, query, maxDate string, decode func(string) ([]string, error)) ([]SidesRow, error) {
	rows, err := db.QueryContext(ctx, query, maxDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("query sides: %w", err)
	}
	defer rows.Close()
	var out []SidesRow
	for rows.Next() {
		var r SidesRow
		var raw string
		if err := rows.Scan(&r.Date, &raw); err != nil {
			return nil, err
		}
		sides, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode sides %s: %w", r.Date, err)
		}
		r.Sides = sides
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryDefinitions(ctx context.Context, db DBExecutor, query string, args ...interface{}) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var word string
		var def sql.NullString
		if err := rows.Scan(&word, &def); err != nil {
			return nil, err
		}
		if def.Valid {
			out[word] = def.String
		}
	}
	return out, rows.Err()
}

// assemble joins sides rows (already newest first) with their solutions.
func assemble(sides []SidesRow, byDate map[string][][]string) ([]puzzle.Puzzle, error) {
	out := make([]puzzle.Puzzle, 0, len(sides))
	for _, s := range sides {
		d, err := puzzle.ParseDate(s.Date)
		if err != nil {
			return nil, fmt.Errorf("stored date: %w", err)
		}
		sols := byDate[s.Date]
		if sols == nil {
			sols = [][]string{}
		}
		out = append(out, puzzle.Puzzle{Date: d, Sides: s.Sides, Solutions: sols})
	}
	return out, nil
}
