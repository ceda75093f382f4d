// Package workflow is the orchestrator behind every action verb: it opens
// the unit of work, enforces state guards, and drives the allocation,
// harvest and AVCO engines along with the inventory and ledger
// collaborators.
package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/allocation"
	"github.com/sells-group/farm-ledger/internal/avco"
	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/hierarchy"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/resilience"
	"github.com/sells-group/farm-ledger/internal/store"
)

// Deps are the collaborators a Service runs against.
type Deps struct {
	Store     store.Store
	Inventory inventory.Inventory
	Ledger    ledger.Ledger
	Config    *config.Config
	Metrics   *metrics.Metrics
}

// Service exposes the farm action verbs.
type Service struct {
	store   store.Store
	gw      *inventory.Gateway
	ledger  ledger.Ledger
	harvest *harvest.Ledger
	avco    *avco.Service
	produce *inventory.ProduceMatcher
	cfg     *config.Config
	metrics *metrics.Metrics
}

// New wires a Service.
func New(d Deps) (*Service, error) {
	produce, err := inventory.NewProduceMatcher(d.Config.Inventory.ProduceCodeRegex)
	if err != nil {
		return nil, err
	}
	gw := inventory.NewGateway(d.Inventory, resilience.FromConfig(d.Config.Retry), d.Metrics)
	return &Service{
		store:   d.Store,
		gw:      gw,
		ledger:  d.Ledger,
		harvest: harvest.NewLedger(gw, d.Config.Inventory, d.Metrics),
		avco:    avco.NewService(d.Inventory, d.Ledger, d.Config.Ledger),
		produce: produce,
		cfg:     d.Config,
		metrics: d.Metrics,
	}, nil
}

// run executes fn in one transaction and records the outcome. Business
// errors pass through untouched; anything else is logged.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, r store.Repo) error) error {
	start := time.Now()
	err := s.store.InTx(ctx, fn)
	s.metrics.Observe(op, start, err)
	if err != nil && farmerr.KindOf(err) == farmerr.Unknown {
		zap.L().Error("operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// verb runs a state-changing action returning an Outcome.
func (s *Service) verb(ctx context.Context, op string, fn func(ctx context.Context, r store.Repo) (model.Outcome, error)) (model.Outcome, error) {
	var out model.Outcome
	err := s.run(ctx, op, func(ctx context.Context, r store.Repo) error {
		var err error
		out, err = fn(ctx, r)
		return err
	})
	if err != nil {
		return model.Outcome{}, err
	}
	zap.L().Info(out.Message, zap.String("operation", op), zap.String("entity", out.Entity), zap.Int64("id", out.ID))
	return out, nil
}

// projectEngine builds the allocation engine for a project's farm and
// assignments.
func projectEngine(ctx context.Context, r store.Repo, p *model.Project) (*allocation.Engine, *hierarchy.Index, error) {
	tree, err := r.LoadFarmTree(ctx, p.FarmID)
	if err != nil {
		return nil, nil, err
	}
	ix := hierarchy.New(*tree)
	assignments, err := r.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, len(assignments))
	for i, a := range assignments {
		ids[i] = a.HouseID
	}
	return allocation.NewEngine(ix, ids), ix, nil
}

// journalEntry posts a journal entry with the configured journal.
func (s *Service) journalEntry(ctx context.Context, ref string, at time.Time, lines []ledger.Line) (*ledger.Entry, error) {
	e, err := s.ledger.Post(ctx, ledger.Entry{Journal: s.cfg.Ledger.Journal, Ref: ref, Date: at, Lines: lines})
	if err != nil {
		if farmerr.KindOf(err) != farmerr.Unknown {
			return nil, err
		}
		return nil, eris.Wrapf(err, "workflow: post %s", ref)
	}
	return e, nil
}
