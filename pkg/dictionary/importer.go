package dictionary

import (
	"context"
	"database/sql"
	"sync"

	"github.com/haziq21/letter-boxed-solver/pkg/db"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"go.uber.org/zap"
)

// Importer matches solution words against a glossary.
type Importer struct {
	logger *zap.Logger
	// index is read concurrently by Backfill workers; guard reads with mu.
	mu    sync.RWMutex
	index map[string]string
}

// NewImporter builds an in-memory index of the provided glossary. A later
// entry for the same word replaces an earlier one.
func NewImporter(entries []Entry, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := make(map[string]string, len(entries))
	for _, e := range entries {
		idx[puzzle.NormalizeWord(e.Word)] = e.Definition
	}
	return &Importer{logger: logger, index: idx}
}

// Len reports the number of indexed words.
func (im *Importer) Len() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.index)
}

// Lookup returns the glossary definition for word.
func (im *Importer) Lookup(word string) (string, bool) {
	im.mu.RLock()
	def, ok := im.index[puzzle.NormalizeWord(word)]
	im.mu.RUnlock()
	return def, ok
}

// Fill returns u with glossary definitions added for solution words the
// payload did not define. Payload definitions always win.
func (im *Importer) Fill(u puzzle.Update) puzzle.Update {
	defs := make(map[string]string, len(u.Definitions))
	for w, d := range u.Definitions {
		defs[w] = d
	}
	added := 0
	for _, w := range u.Words() {
		if _, ok := defs[w]; ok {
			continue
		}
		if def, ok := im.Lookup(w); ok {
			defs[w] = def
			added++
		}
	}
	if added > 0 {
		im.logger.Debug("glossary filled definitions",
			zap.String("date", puzzle.FormatDate(u.Date)),
			zap.Int("added", added))
	}
	u.Definitions = defs
	return u
}

// ProcessUpdates finds glossary definitions for stored words that have none
// and writes them. It returns the number of words updated.
func (im *Importer) ProcessUpdates(ctx context.Context, conn *sql.DB) (int, error) {
	words, err := db.UndefinedWords(ctx, conn)
	if err != nil {
		return 0, err
	}

	updates := make(map[string]string)
	for _, w := range words {
		if def, ok := im.Lookup(w); ok {
			updates[w] = def
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}

	err = db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		return db.UpsertDefinitions(ctx, tx, updates)
	})
	if err != nil {
		return 0, err
	}
	im.logger.Info("glossary applied to stored words",
		zap.Int("undefined", len(words)),
		zap.Int("updated", len(updates)))
	return len(updates), nil
}
