package main

import (
	"fmt"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/haziq21/letter-boxed-solver/pkg/view"
	"github.com/spf13/cobra"
)

// now is swapped in tests.
var now = time.Now

// parseMaxDate reads --max-date: empty for everything, "published" for the
// newest day whose solutions are out, or a date.
func parseMaxDate(raw string) (time.Time, error) {
	switch raw {
	case "", "all":
		return time.Time{}, nil
	case "published":
		return puzzle.PublishedCutoff(now()), nil
	}
	d, err := puzzle.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--max-date: %w", err)
	}
	return d, nil
}

func filterFor(raw string) (puzzle.Filter, error) {
	d, err := parseMaxDate(raw)
	if err != nil || d.IsZero() {
		return puzzle.Filter{}, err
	}
	return puzzle.Until(d), nil
}

func addMaxDateFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "max-date", "", `latest date to include: YYYY-MM-DD, "published" or "all"`)
}

func newPuzzlesCmd(a *app) *cobra.Command {
	var maxDate string
	cmd := &cobra.Command{
		Use:   "puzzles",
		Short: "List stored puzzles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filterFor(maxDate)
			if err != nil {
				return err
			}
			ps, err := a.store.Puzzles(cmd.Context(), f)
			if err != nil {
				return err
			}
			if ps == nil {
				ps = []puzzle.Puzzle{}
			}
			return a.write(ps)
		},
	}
	addMaxDateFlag(cmd, &maxDate)
	return cmd
}

func newDefinitionsCmd(a *app) *cobra.Command {
	var maxDate string
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Print the word dictionary",
		Long: `Prints every stored definition, or with --max-date only those of words
used by solutions up to that date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filterFor(maxDate)
			if err != nil {
				return err
			}
			defs, err := a.store.Definitions(cmd.Context(), f)
			if err != nil {
				return err
			}
			if defs == nil {
				defs = map[string]string{}
			}
			return a.write(defs)
		},
	}
	addMaxDateFlag(cmd, &maxDate)
	cmd.AddCommand(newFillCmd(a))
	return cmd
}

func newFillCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill stored words that lack a definition from a glossary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.cfg.Ingest.Glossary
			}
			if path == "" {
				return fmt.Errorf("--glossary is required")
			}
			sq, ok := a.store.(*store.SQLStore)
			if !ok {
				return fmt.Errorf("fill needs the sqlite backend, not %s", a.cfg.Store.Backend)
			}
			im, err := a.glossary(path)
			if err != nil {
				return err
			}
			n, err := im.ProcessUpdates(cmd.Context(), sq.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "filled %d definitions\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "glossary", "", "word list to read definitions from")
	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	maxDate := "published"
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print puzzles and their definitions as the site renders them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseMaxDate(maxDate)
			if err != nil {
				return err
			}
			v, err := view.Load(cmd.Context(), a.store, d)
			if err != nil {
				return err
			}
			return a.write(v)
		},
	}
	cmd.Flags().StringVar(&maxDate, "max-date", maxDate, `latest date to include: YYYY-MM-DD, "published" or "all"`)
	return cmd
}
