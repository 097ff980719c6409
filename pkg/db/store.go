package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertSides inserts the sides for date or replaces the stored ones.
func UpsertSides(ctx context.Context, db DBExecutor, date string, sides []string) error {
	encoded, err := json.Marshal(sides)
	if err != nil {
		return fmt.Errorf("encode sides: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO sides (date, sides) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET sides = excluded.sides`, date, string(encoded))
	if err != nil {
		return fmt.Errorf("upsert sides %s: %w", date, err)
	}
	return nil
}

// DeleteSolutions removes every solution of date together with its word links.
func DeleteSolutions(ctx context.Context, db DBExecutor, date string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM solution_words
		WHERE solution_id IN (SELECT id FROM solutions WHERE date = ?)`, date); err != nil {
		return fmt.Errorf("delete solution words %s: %w", date, err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM solutions WHERE date = ?`, date); err != nil {
		return fmt.Errorf("delete solutions %s: %w", date, err)
	}
	return nil
}

// InsertSolution creates the solution row at position and returns it.
func InsertSolution(ctx context.Context, db DBExecutor, date string, position int) (SolutionRow, error) {
	row := SolutionRow{Date: date, Position: position}
	err := db.QueryRowContext(ctx, `INSERT INTO solutions (date, position) VALUES (?, ?) RETURNING id`,
		date, position).Scan(&row.ID)
	if err != nil {
		return SolutionRow{}, fmt.Errorf("insert solution %s/%d: %w", date, position, err)
	}
	return row, nil
}

// EnsureWord inserts word without a definition unless it already exists.
// An existing definition is never touched.
func EnsureWord(ctx context.Context, db DBExecutor, word string) error {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return fmt.Errorf("word must be non-empty")
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO words (text) VALUES (?) ON CONFLICT(text) DO NOTHING`, trimmed); err != nil {
		return fmt.Errorf("ensure word %s: %w", trimmed, err)
	}
	return nil
}

// LinkSolutionWord records a word's position inside a solution.
func LinkSolutionWord(ctx context.Context, db DBExecutor, link SolutionWordRow) error {
	if link.SolutionID <= 0 {
		return fmt.Errorf("solutionID must be positive")
	}
	_, err := db.ExecContext(ctx, `INSERT INTO solution_words (solution_id, word, ord) VALUES (?, ?, ?)`,
		link.SolutionID, link.Word, link.Ord)
	if err != nil {
		return fmt.Errorf("link word %s to solution %d: %w", link.Word, link.SolutionID, err)
	}
	return nil
}

// ReplacePuzzle stores sides and solutions for date, fully replacing whatever
// the date held before. Run it inside a transaction.
func ReplacePuzzle(ctx context.Context, db DBExecutor, date string, sides []string, solutions [][]string) error {
	if err := UpsertSides(ctx, db, date, sides); err != nil {
		return err
	}
	if err := DeleteSolutions(ctx, db, date); err != nil {
		return err
	}
	for pos, words := range solutions {
		sol, err := InsertSolution(ctx, db, date, pos)
		if err != nil {
			return err
		}
		for ord, w := range words {
			if err := EnsureWord(ctx, db, w); err != nil {
				return err
			}
			if err := LinkSolutionWord(ctx, db, SolutionWordRow{SolutionID: sol.ID, Word: w, Ord: ord}); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpsertDefinition sets the definition of word, creating the word if needed.
// An empty definition leaves a stored one untouched.
func UpsertDefinition(ctx context.Context, db DBExecutor, word, definition string) error {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return fmt.Errorf("word must be non-empty")
	}
	_, err := db.ExecContext(ctx, `INSERT INTO words (text, definition) VALUES (?, NULLIF(?, ''))
		ON CONFLICT(text) DO UPDATE SET
		  definition = COALESCE(NULLIF(excluded.definition, ''), words.definition)`,
		trimmed, definition)
	if err != nil {
		return fmt.Errorf("upsert definition %s: %w", trimmed, err)
	}
	return nil
}

// UpsertDefinitions applies UpsertDefinition for every entry in sorted word order.
func UpsertDefinitions(ctx context.Context, db DBExecutor, defs map[string]string) error {
	words := make([]string, 0, len(defs))
	for w := range defs {
		words = append(words, w)
	}
	sort.Strings(words)
	for _, w := range words {
		if err := UpsertDefinition(ctx, db, w, defs[w]); err != nil {
			return err
		}
	}
	return nil
}

// GetWord returns the stored word, or sql.ErrNoRows.
func GetWord(ctx context.Context, db DBExecutor, word string) (Word, error) {
	var w Word
	var def sql.NullString
	err := db.QueryRowContext(ctx, `SELECT text, definition FROM words WHERE text = ?`, word).Scan(&w.Text, &def)
	if err != nil {
		return Word{}, err
	}
	if def.Valid {
		w.Definition = def.String
	}
	return w, nil
}

// UndefinedWords lists words that have no stored definition, in text order.
func UndefinedWords(ctx context.Context, db DBExecutor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT text FROM words WHERE definition IS NULL OR definition = '' ORDER BY text`)
	if err != nil {
		return nil, fmt.Errorf("query undefined words: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
