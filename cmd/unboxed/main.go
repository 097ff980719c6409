// Command unboxed ingests daily Letter Boxed results and serves the archive.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/haziq21/letter-boxed-solver/pkg/config"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	out io.Writer

	configFile string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	store  store.Store

	// newLogger builds the logger from the resolved config. Tests swap it out.
	newLogger func(level zapcore.Level) (*zap.Logger, error)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newApp(out).rootCmd()
}

func newApp(out io.Writer) *app {
	return &app{out: out, newLogger: productionLogger}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "unboxed",
		Short: "Archive of daily Letter Boxed puzzles and solutions",
		Long: `unboxed stores each day's Letter Boxed sides, solutions and word
definitions, and serves them newest first to the site renderer.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return a.teardown() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./unboxed.yaml)")
	pf.String("backend", "", "store backend: sqlite, redis or memory")
	pf.String("format", "", "output format: json or yaml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(a),
		newPuzzlesCmd(a),
		newDefinitionsCmd(a),
		newViewCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads config, builds the logger and opens the store.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	if err := v.BindPFlag(config.KeyBackend, pf.Lookup("backend")); err != nil {
		return err
	}
	if err := v.BindPFlag(config.KeyFormat, pf.Lookup("format")); err != nil {
		return err
	}
	if err := bindLocalFlags(cmd, v); err != nil {
		return err
	}
	if a.verbose {
		v.Set(config.KeyLogLevel, "debug")
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	lvl, _ := cfg.LogLevel()
	a.logger, err = a.newLogger(lvl)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.store, err = store.Open(cmd.Context(), cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.logger.Debug("store opened", zap.String("backend", cfg.Store.Backend))
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// configKey marks a local flag that overrides a config key.
const configKey = "config-key"

// bindLocalFlags binds every flag of cmd annotated with configKey into v.
func bindLocalFlags(cmd *cobra.Command, v *viper.Viper) error {
	var err error
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKey]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}

func bindFlag(cmd *cobra.Command, name, key string) {
	_ = cmd.Flags().SetAnnotation(name, configKey, []string{key})
}

func productionLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
