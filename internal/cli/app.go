package cli

import (
	"context"
	"fmt"

	"eve-industry/internal/config"
	"eve-industry/internal/db"
	"eve-industry/internal/db/pg"
	"eve-industry/internal/db/rdb"
	"eve-industry/internal/engine"
	"eve-industry/internal/esi"
	"eve-industry/internal/gate"
	"eve-industry/internal/logger"
	"eve-industry/internal/matcher"
	"eve-industry/internal/sde"
	"eve-industry/internal/service"
	"eve-industry/internal/worker"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	catalog  engine.Catalog
	matchers *matcher.Store
	esi      *esi.Client
	svc      *service.Service
	db       *db.DB // nil with the memory backend

	closers []func()
}

// opener builds an app from configuration. Tests swap it out.
type opener func(ctx context.Context, cfg *config.Config) (*app, error)

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openApp wires storage, the SDE catalog, the market client and the
// engines behind the compute gate.
func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var (
		repo    matcher.Repository
		history esi.HistoryCache
		runs    service.RunStore
	)
	if cfg.Storage.Backend != "memory" {
		d, err := db.Open(cfg.Storage.SQLite)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { d.Close() })
		a.db = d
		repo, history, runs = d, d, d
	}
	switch cfg.Storage.Backend {
	case "redis":
		r, err := rdb.Open(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { r.Close() })
		repo = r
	case "postgres":
		p, err := pg.Open(ctx, cfg.Storage.PGDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		repo = p
	case "memory":
		repo = matcher.NewMemoryRepository()
	}

	data, err := sde.Load(cfg.SDEDir)
	if err != nil {
		return nil, fmt.Errorf("load SDE: %w", err)
	}
	catalog := sde.NewCatalog(data)
	a.catalog = catalog
	a.matchers = matcher.NewStore(repo, catalog)

	book := engine.DefaultRecipeBook()
	book.Efficiency = cfg.RefineEfficiency
	if n := book.ApplyYields(data.Industry); n > 0 {
		logger.Debug("REFINE", fmt.Sprintf("%d recipes use SDE reprocessing yields", n))
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	a.esi = esi.NewClient(esi.WithToken(cfg.ESIToken), esi.WithConcurrency(cfg.PageConcurrency))
	market := engine.NewESIMarket(a.esi, history, cfg)

	costs := engine.NewPlanCostTable(nil, nil, catalog, a.matchers)
	if cfg.PlanFile != "" {
		if costs, err = engine.LoadPlanCostTable(cfg.PlanFile, catalog, a.matchers); err != nil {
			return nil, err
		}
	}

	pool := worker.NewPool(cfg.Workers)
	a.closers = append(a.closers, pool.Close)
	a.svc = service.New(
		gate.New("industry"),
		pool,
		engine.NewCompressionOptimizer(book, market, cfg.Hub, catalog),
		engine.NewAdvisor(catalog, costs, market, cfg.Hub, cfg.Secondary, engine.AdvisoryParamsFromConfig(cfg)),
		runs,
		cfg.GateTimeout,
	)
	return a, nil
}
