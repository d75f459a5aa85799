// Package app wires the orchestrator's services together from
// configuration. Every command builds one App and picks the pieces it
// needs.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/sulphurninja/oceanlinux-sub002/internal/approval"
	"github.com/sulphurninja/oceanlinux-sub002/internal/config"
	"github.com/sulphurninja/oceanlinux-sub002/internal/database"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
	"github.com/sulphurninja/oceanlinux-sub002/internal/provision"
	"github.com/sulphurninja/oceanlinux-sub002/internal/requeststore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/resolver"
	"github.com/sulphurninja/oceanlinux-sub002/internal/statesync"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Log      *logging.Logger
	Orders   orderstore.Repository
	Requests requeststore.Repository

	Registry     *providers.Registry
	Resolver     *resolver.Resolver
	Executor     *executor.Executor
	Orchestrator *provision.Orchestrator
	Bulk         *provision.Bulk
	Approval     *approval.Service
	Syncer       *statesync.Syncer

	db *sql.DB
}

// New loads configuration and wires everything.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(os.Stderr, parseLevel(cfg.LogLevel))

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	orders, err := orderstore.NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	requests, err := requeststore.NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug(context.Background(), logging.EventDBConnected, "database ready",
		"path", cfg.DatabasePath)

	registry, err := buildRegistry(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	res := resolver.FromRegistry(registry, log)
	exec := executor.New(orders, registry, res, log)
	orch := provision.NewOrchestrator(orders, registry, log)
	bulk := provision.NewBulk(orch, cfg.BulkWorkers, log)
	appr := approval.New(requests, orders, exec, log)
	syncer := statesync.New(orders, registry, res,
		time.Duration(cfg.SyncIntervalSec)*time.Second, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Orders:       orders,
		Requests:     requests,
		Registry:     registry,
		Resolver:     res,
		Executor:     exec,
		Orchestrator: orch,
		Bulk:         bulk,
		Approval:     appr,
		Syncer:       syncer,
		db:           db,
	}, nil
}

// Close releases the shared database handle.
func (a *App) Close() error {
	return a.db.Close()
}

func buildRegistry(cfg *config.Config) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if cfg.Hostycare.BaseURL != "" {
		registry.Add(providers.NewHostycareClient(
			cfg.Hostycare.BaseURL, cfg.Hostycare.Username, cfg.Hostycare.APIKey))
	}
	for _, p := range cfg.Panels {
		registry.AddPanel(providers.NewVirtualizorClient(p.Name, p.BaseURL, p.APIKey, p.APIPass))
	}
	if cfg.HetznerToken != "" {
		registry.Add(providers.NewHetznerClient(hcloud.WithToken(cfg.HetznerToken)))
	}

	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("config: no providers configured")
	}
	return registry, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
