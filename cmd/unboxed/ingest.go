package main

import (
	"fmt"

	"github.com/haziq21/letter-boxed-solver/pkg/dictionary"
	"github.com/haziq21/letter-boxed-solver/pkg/ingest"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Store one day's payload or a backfill archive",
		Long: `Reads a JSON payload {date, sides, solutions, definitions} or an array of
them from a file, or from standard input with "-". Every entry is validated
before anything is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updates []puzzle.Update
			var err error
			if len(args) == 0 || args[0] == "-" {
				updates, err = ingest.ReadPayloads(cmd.InOrStdin())
			} else {
				updates, err = ingest.LoadFile(args[0])
			}
			if err != nil {
				return err
			}

			sy, err := a.syncer()
			if err != nil {
				return err
			}
			if len(updates) == 1 {
				if err := sy.Sync(cmd.Context(), updates[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "synced 1 puzzle")
				return nil
			}
			n, err := sy.Backfill(cmd.Context(), updates)
			if err != nil {
				return fmt.Errorf("backfill stopped after %d of %d puzzles: %w", n, len(updates), err)
			}
			fmt.Fprintf(a.out, "synced %d puzzles\n", n)
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "concurrent upserts during a backfill")
	cmd.Flags().String("glossary", "", "word list used to fill missing definitions")
	bindFlag(cmd, "workers", "ingest.workers")
	bindFlag(cmd, "glossary", "ingest.glossary")
	return cmd
}

// syncer builds a Syncer from the ingest settings.
func (a *app) syncer() (*ingest.Syncer, error) {
	sy := ingest.NewSyncer(a.store, a.logger)
	sy.Workers = a.cfg.Ingest.Workers
	sy.MaxAttempts = a.cfg.Ingest.MaxAttempts
	sy.RetryDelay = a.cfg.Ingest.RetryDelay

	if path := a.cfg.Ingest.Glossary; path != "" {
		im, err := a.glossary(path)
		if err != nil {
			return nil, err
		}
		sy.Glossary = im
	}
	return sy, nil
}

func (a *app) glossary(path string) (*dictionary.Importer, error) {
	entries, err := dictionary.LoadGlossary(path)
	if err != nil {
		return nil, fmt.Errorf("load glossary: %w", err)
	}
	a.logger.Info("glossary loaded", zap.String("path", path), zap.Int("words", len(entries)))
	return dictionary.NewImporter(entries, a.logger), nil
}
