package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/analytics"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/config"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/logger"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/selector"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/session"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/update"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logMode    string
	driver     string
}

var rootCmd = &cobra.Command{
	Use:   "lanequiz",
	Short: "Adaptive career-lane quiz",
	Long:  "lanequiz asks agree/disagree statements, rates eight career lanes with Elo\nand stops once one lane clearly leads.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "lanequiz.yaml", "path to YAML config (missing file uses defaults)")
	f.StringVar(&rootFlags.logMode, "log", "", "log mode override: dev, prod or quiet")
	f.StringVar(&rootFlags.driver, "driver", "", "storage driver override: sqlite, redis or memory")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #region app
// app holds everything a subcommand needs. Close releases it in reverse order.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	cat    *catalog.Catalog
	store  state.Persistence
	sqlite *state.SQLiteStore // nil unless the sqlite driver is in use
	events *analytics.EventLog
	async  *analytics.Async
	engine *update.Engine

	closers []func() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if rootFlags.logMode != "" {
		cfg.Log.Mode = rootFlags.logMode
	}
	if rootFlags.driver != "" {
		cfg.Storage.Driver = rootFlags.driver
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Catalog.Path)
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	a.cat, err = loadCatalog(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		st, err := state.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store, a.sqlite = st, st
		a.closers = append(a.closers, st.Close)
		if cfg.Analytics.Enabled {
			el, err := analytics.NewEventLog(st.DB(), log)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.events = el
		}
	case config.DriverRedis:
		st, err := state.NewRedisStore(ctx, state.RedisOptions{
			Addr:      cfg.Storage.RedisAddr,
			Key:       cfg.Storage.RedisKey,
			LegacyKey: cfg.Storage.RedisLegacyKey,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	default:
		a.store = state.NewMemoryStore(nil, nil)
	}

	policy := convergence.New(cfg.ConvergenceConfig())
	sel := selector.New(cfg.SelectorConfig(), selector.NewRand(cfg.Engine.Seed))
	a.engine = update.NewEngine(a.cat, sel, policy)

	log.Debug("app ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Int("statements", a.cat.Len()),
		zap.Bool("analytics", a.events != nil),
	)
	return a, nil
}

// sink returns the analytics sink for a session. The event log is wrapped in
// Async so a slow disk never blocks a commit.
func (a *app) sink() analytics.Sink {
	if a.events == nil {
		return analytics.Nop{}
	}
	if a.async == nil {
		a.async = analytics.NewAsync(a.events, a.cfg.Analytics.Buffer, a.log)
		a.closers = append(a.closers, a.async.Close)
	}
	return a.async
}

func (a *app) openSession(ctx context.Context) (*session.Session, error) {
	return session.Open(ctx, session.Options{
		Store:       a.store,
		Engine:      a.engine,
		Sink:        a.sink(),
		Logger:      a.log,
		SettleDelay: a.cfg.Session.SettleDelay,
		MaxRounds:   a.cfg.Engine.MaxRounds,
	})
}

func (a *app) requireSQLite(what string) error {
	if a.sqlite == nil {
		return fmt.Errorf("%s needs the sqlite driver (current: %s)", what, a.cfg.Storage.Driver)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// #endregion app
