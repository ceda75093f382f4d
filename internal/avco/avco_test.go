package avco

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/resilience"
	"github.com/sells-group/farm-ledger/internal/store"
)

type harness struct {
	store   store.Store
	inv     *inventory.Memory
	ledger  *ledger.Memory
	harvest *harvest.Ledger
	avco    *Service
	rc      model.RequestContext
	project model.Project
	assign  model.HouseAssignment
	idle    model.HouseAssignment
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  store.NewMemory(),
		inv:    inventory.NewMemory(),
		ledger: ledger.NewMemory(2, "GENERAL"),
		rc:     model.RequestContext{Clock: func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }},
	}
	require.NoError(t, inventory.DefaultCatalog().Apply(h.inv))
	h.inv.AddProduct(inventory.Product{ID: 1, Code: "7001", Name: "Tomatoes", Storable: true, StandardPrice: 3, ValuationAccount: "1300"})

	gw := inventory.NewGateway(h.inv, resilience.RetryConfig{MaxAttempts: 1}, nil)
	h.harvest = harvest.NewLedger(gw, config.InventoryConfig{}, nil)
	h.avco = NewService(h.inv, h.ledger, config.LedgerConfig{Precision: 2, Journal: "GENERAL"})

	h.tx(t, func(ctx context.Context, r store.Repo) {
		farm := model.Farm{Name: "North"}
		require.NoError(t, r.CreateFarm(ctx, &farm))
		sector := model.Sector{FarmID: farm.ID, Name: "S"}
		require.NoError(t, r.CreateSector(ctx, &sector))
		unit := model.Unit{SectorID: sector.ID, Name: "U"}
		require.NoError(t, r.CreateUnit(ctx, &unit))
		house := model.House{UnitID: unit.ID, Name: "A", Area: 100}
		require.NoError(t, r.CreateHouse(ctx, &house))
		other := model.House{UnitID: unit.ID, Name: "B", Area: 100}
		require.NoError(t, r.CreateHouse(ctx, &other))

		h.project = model.Project{FarmID: farm.ID, Name: "Spring", Status: model.ProjectInProgress}
		require.NoError(t, r.CreateProject(ctx, &h.project))
		h.assign = model.HouseAssignment{ProjectID: h.project.ID, HouseID: house.ID, ProductID: 1, ExpectedQty: 1000}
		require.NoError(t, r.CreateAssignment(ctx, &h.assign))
		h.idle = model.HouseAssignment{ProjectID: h.project.ID, HouseID: other.ID, ProductID: 1, ExpectedQty: 1000}
		require.NoError(t, r.CreateAssignment(ctx, &h.idle))

		cost := model.Cost{ProjectID: h.project.ID, Type: model.CostIndirect, State: model.CostPosted, Amount: 5000, CostAccount: "6100"}
		require.NoError(t, r.CreateCost(ctx, &cost))
		require.NoError(t, r.ReplaceAllocations(ctx, cost.ID, []model.Allocation{{
			CostID: cost.ID, ProjectID: h.project.ID, HouseID: house.ID, HouseArea: 100, AllocatedAmount: 5000, Percentage: 100,
		}}))

		for _, qty := range []float64{200, 300} {
			_, err := h.harvest.Record(ctx, h.rc, r, harvest.RecordInput{
				AssignmentID: h.assign.ID, Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Quantity: qty,
			})
			require.NoError(t, err)
		}
	})
	return h
}

func (h *harness) tx(t *testing.T, fn func(ctx context.Context, r store.Repo)) {
	t.Helper()
	require.NoError(t, h.store.InTx(context.Background(), func(ctx context.Context, r store.Repo) error {
		fn(ctx, r)
		return nil
	}))
}

func (h *harness) price(t *testing.T) float64 {
	t.Helper()
	p, err := h.inv.Product(context.Background(), 1)
	require.NoError(t, err)
	return p.StandardPrice
}

func TestBasis_UnitCost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		b      Basis
		want   float64
		wantOK bool
	}{
		{"normal", Basis{TotalAllocated: 5000, TotalQuantity: 500}, 10, true},
		{"no cost", Basis{TotalQuantity: 500}, 0, false},
		{"no quantity", Basis{TotalAllocated: 5000}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.b.UnitCost()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecompute(t *testing.T) {
	h := newHarness(t)

	h.tx(t, func(ctx context.Context, r store.Repo) {
		audits, err := h.avco.Recompute(ctx, h.rc, r, h.project.ID)
		require.NoError(t, err)
		require.Len(t, audits, 1)

		a := audits[0]
		assert.InDelta(t, 10, a.TargetUnitCost, 1e-9)
		assert.InDelta(t, 500, a.TotalQuantity, 1e-9)
		assert.InDelta(t, 3, a.PreviousPrice, 1e-9)
		assert.Len(t, a.HarvestEntryIDs, 2)
		assert.Len(t, a.Layers, 2)
		require.NotEmpty(t, a.JournalEntryID)

		p, err := r.GetProject(ctx, h.project.ID)
		require.NoError(t, err)
		assert.True(t, p.AVCOUpdated)
	})

	assert.InDelta(t, 10, h.price(t), 1e-9)
	layers, err := h.inv.OpenLayers(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 2000, layers[0].RemainingValue, 1e-9)
	assert.InDelta(t, 3000, layers[1].RemainingValue, 1e-9)

	entries := h.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "1300", entries[0].Lines[0].Account)
	assert.True(t, entries[0].Lines[0].Debit.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, "6100", entries[0].Lines[1].Account)
}

func TestRevert_RoundTrip(t *testing.T) {
	h := newHarness(t)
	before := h.price(t)

	h.tx(t, func(ctx context.Context, r store.Repo) {
		_, err := h.avco.Recompute(ctx, h.rc, r, h.project.ID)
		require.NoError(t, err)

		n, err := h.avco.Revert(ctx, h.rc, r, h.project.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		audits, err := r.ListAVCOAudits(ctx, h.project.ID)
		require.NoError(t, err)
		assert.Empty(t, audits)

		p, err := r.GetProject(ctx, h.project.ID)
		require.NoError(t, err)
		assert.False(t, p.AVCOUpdated)
	})

	assert.InDelta(t, before, h.price(t), 1e-9)
	entries := h.ledger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.EntryReversed, entries[0].State)
	assert.Equal(t, entries[0].ID, entries[1].ReversalOf)
}

func TestUpdate_Idempotent(t *testing.T) {
	h := newHarness(t)

	for range 3 {
		h.tx(t, func(ctx context.Context, r store.Repo) {
			audits, err := h.avco.Update(ctx, h.rc, r, h.project.ID)
			require.NoError(t, err)
			require.Len(t, audits, 1)
			assert.InDelta(t, 10, audits[0].TargetUnitCost, 1e-9)
		})
	}
	assert.InDelta(t, 10, h.price(t), 1e-9)

	h.tx(t, func(ctx context.Context, r store.Repo) {
		audits, err := r.ListAVCOAudits(ctx, h.project.ID)
		require.NoError(t, err)
		assert.Len(t, audits, 1)
	})
}

func TestRecompute_SkipsCancelledAndUnreceived(t *testing.T) {
	h := newHarness(t)

	h.tx(t, func(ctx context.Context, r store.Repo) {
		entries, err := r.ListHarvests(ctx, h.assign.ID)
		require.NoError(t, err)
		_, err = h.harvest.Cancel(ctx, h.rc, r, entries[1].ID)
		require.NoError(t, err)

		audits, err := h.avco.Recompute(ctx, h.rc, r, h.project.ID)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		assert.InDelta(t, 200, audits[0].TotalQuantity, 1e-9)
		assert.InDelta(t, 25, audits[0].TargetUnitCost, 1e-9)
	})
}

func TestRevert_NoAudits(t *testing.T) {
	h := newHarness(t)
	h.tx(t, func(ctx context.Context, r store.Repo) {
		n, err := h.avco.Revert(ctx, h.rc, r, h.project.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
	assert.InDelta(t, 3, h.price(t), 1e-9)
}

// auditWriteFails is a repo that cannot store AVCO audits.
type auditWriteFails struct {
	store.Repo
}

func (auditWriteFails) CreateAVCOAudit(context.Context, *model.AVCOAudit) error {
	return errors.New("disk full")
}

func TestRecompute_UndoesSideEffectsOnStoreFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before, err := h.inv.OpenLayers(ctx, 1)
	require.NoError(t, err)

	h.tx(t, func(ctx context.Context, r store.Repo) {
		_, err := h.avco.Recompute(ctx, h.rc, auditWriteFails{r}, h.project.ID)
		require.Error(t, err)
	})

	assert.InDelta(t, 3, h.price(t), 1e-9)
	after, err := h.inv.OpenLayers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.InDelta(t, before[i].RemainingValue, after[i].RemainingValue, 1e-9)
	}

	entries := h.ledger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.EntryReversed, entries[0].State)
	assert.Equal(t, entries[0].ID, entries[1].ReversalOf)
}
