package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/store"
	"github.com/sells-group/farm-ledger/internal/workflow"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "farm.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the runtime a command works against.
type env struct {
	Store     store.Store
	Service   *workflow.Service
	Metrics   *metrics.Metrics
	Ledger    *ledger.Memory
	Inventory *inventory.Memory
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens and migrates the store, loads the inventory catalog and
// wires the workflow service.
func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog, err := inventory.LoadCatalog(c.Inventory.CatalogPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	inv := inventory.NewMemory()
	if err := catalog.Apply(inv); err != nil {
		_ = st.Close()
		return nil, err
	}
	led := ledger.NewMemory(c.Ledger.Precision, c.Ledger.Journal)
	m := metrics.New()

	svc, err := workflow.New(workflow.Deps{Store: st, Inventory: inv, Ledger: led, Config: c, Metrics: m})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &env{Store: st, Service: svc, Metrics: m, Ledger: led, Inventory: inv}, nil
}
