package main

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/config"
	"github.com/dmikhno/groupscan/internal/journal"
	"github.com/dmikhno/groupscan/internal/lifecycle"
	"github.com/dmikhno/groupscan/internal/logging"
	"github.com/dmikhno/groupscan/internal/store"
	"github.com/dmikhno/groupscan/internal/transport"
	"github.com/dmikhno/groupscan/internal/transport/botapi"
	"github.com/dmikhno/groupscan/internal/transport/webapp"
)

// appContext wires the full client stack for one command invocation.
type appContext struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *store.Store
	cache   *cache.Cache
	journal *journal.Journal
	mgr     *lifecycle.Manager

	closers []func()
}

// buildApp loads the configuration and assembles the client.
func buildApp() (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logging.New(cfg.LogLevel)

	st, err := store.New(cfg.DataDir, cfg.UserID, log)
	if err != nil {
		return nil, err
	}
	snap := st.Load()
	c := cache.NewFrom(snap.Results)

	app := &appContext{cfg: cfg, log: log, store: st, cache: c}

	// Journaling is diagnostics only; a broken database disables it
	// instead of blocking the client.
	jr, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"))
	if err != nil {
		log.WithError(err).Warn("journal disabled")
	} else {
		app.journal = jr
		app.closers = append(app.closers, func() { jr.Close() })
	}

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportWebApp:
		bridge := webapp.NewBridge(cfg.APIBaseURL, log)
		wt := webapp.New(bridge, cfg.ChannelTimeout, log)
		app.closers = append(app.closers, wt.Close, bridge.Close)
		tr = wt
	default:
		tr = botapi.New(cfg.APIBaseURL, cfg.ClientTimeout, log)
	}

	app.mgr = lifecycle.New(tr, c, st, app.journal, snap, &lifecycle.Config{
		PollInterval:     cfg.PollInterval,
		ProgressInterval: cfg.ProgressInterval,
		HoldWindow:       cfg.HoldWindow,
		StatusRetries:    cfg.StatusRetries,
	}, log)
	return app, nil
}

// Close stops the manager and releases every held resource.
func (a *appContext) Close() {
	a.mgr.Stop()
	for _, fn := range a.closers {
		fn()
	}
}
