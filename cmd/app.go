package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/marcus/geoedit/internal/config"
	"github.com/marcus/geoedit/internal/gitsync"
	"github.com/marcus/geoedit/internal/history"
	"github.com/marcus/geoedit/internal/session"
	"github.com/marcus/geoedit/internal/suggest"
)

// maxHistoryRows bounds the history database; older entries are pruned on open.
const maxHistoryRows = 1000

var gitMetrics = sync.OnceValue(func() *gitsync.Metrics {
	return gitsync.NewMetrics(registry)
})

// app bundles what most commands need: the loaded configuration, the git
// synchronizer, the history store and a session controller over them.
type app struct {
	cfgPath string
	cfg     *config.Config
	syncer  *gitsync.Syncer
	store   *history.Store // nil when the history database could not be opened
	ctrl    *session.Controller
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func newSyncer(cfg *config.Config) *gitsync.Syncer {
	name, email := cfg.Identity()
	return gitsync.New(
		gitsync.WithMetrics(gitMetrics()),
		gitsync.WithIdentity(gitsync.Identity{Name: name, Email: email}),
	)
}

// openApp loads the configuration and wires the session. History is best
// effort: a broken database only loses the log.
func openApp(ctx context.Context) (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfgPath: path, cfg: cfg, syncer: newSyncer(cfg)}

	opts := []session.Option{session.WithSessionID(history.NewSessionID())}
	store, err := history.Open(history.DefaultPath(filepath.Dir(path)))
	if err != nil {
		slog.Warn("history unavailable", "err", err)
	} else {
		a.store = store
		if _, err := store.Prune(ctx, maxHistoryRows); err != nil {
			slog.Warn("prune history", "err", err)
		}
		opts = append(opts, session.WithRecorder(store))
	}

	a.ctrl = session.New(cfg, a.syncer, opts...)
	return a, nil
}

// openConfigured is openApp for commands that need a valid configuration.
func openConfigured(ctx context.Context) (*app, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w\nrun 'geoedit config init' to fix the configuration", err)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// selectSource loads name, suggesting close source names when it is unknown.
func (a *app) selectSource(ctx context.Context, name string) error {
	err := a.ctrl.SelectDataSource(ctx, name)
	if errors.Is(err, session.ErrUnknownSource) {
		names := make([]string, len(a.cfg.DataSources))
		for i, ds := range a.cfg.DataSources {
			names[i] = ds.Name
		}
		return fmt.Errorf("%w%s", err, suggest.Hint(name, names))
	}
	return err
}

// record writes a history entry for operations run outside the controller.
func (a *app) record(ctx context.Context, e history.Entry) {
	if a.store == nil {
		return
	}
	e.SessionID = a.ctrl.SessionID()
	if _, err := a.store.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("record history", "op", e.Op, "err", err)
	}
}
