package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

type fixture struct {
	svc    *Service
	store  store.Store
	inv    *inventory.Memory
	ledger *ledger.Memory
	now    time.Time
	rc     model.RequestContext

	farm    model.Farm
	sector  model.Sector
	houseA  model.House
	houseB  model.House
	project model.Project
}

func testConfig() *config.Config {
	return &config.Config{
		Inventory: config.InventoryConfig{ProduceCodeRegex: "^70"},
		Ledger:    config.LedgerConfig{Precision: 2, Journal: "GENERAL"},
		Orders:    config.OrdersConfig{JustificationMinLen: 10},
		Retry:     config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1},
	}
}

// newFixture builds a farm with one sector holding houses A (100 m²,
// analytic account AA-A) and B (300 m²), and a draft project on it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemory(),
		inv:    inventory.NewMemory(),
		ledger: ledger.NewMemory(2, "GENERAL"),
		now:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.rc = model.RequestContext{CompanyID: 1, UserID: "tester", Clock: func() time.Time { return f.now }}
	require.NoError(t, inventory.DefaultCatalog().Apply(f.inv))
	f.inv.AddProduct(inventory.Product{ID: 1, Code: "7001", Name: "Tomatoes", UOM: "kg", Storable: true, StandardPrice: 2})
	f.inv.AddProduct(inventory.Product{ID: 2, Code: "7002", Name: "Peppers", UOM: "kg", Storable: true, StandardPrice: 3})
	f.inv.AddProduct(inventory.Product{ID: 3, Code: "5001", Name: "Fertilizer", UOM: "bag", Storable: true, StandardPrice: 10,
		OrderSourceAccount: "6200", OrderDestAccount: "1400"})
	require.NoError(t, f.inv.AddStock(3, "WH/Stock", 50, 10))

	svc, err := New(Deps{Store: f.store, Inventory: f.inv, Ledger: f.ledger, Config: testConfig()})
	require.NoError(t, err)
	f.svc = svc

	ctx := context.Background()
	f.farm = model.Farm{Name: "North"}
	require.NoError(t, svc.CreateFarm(ctx, f.rc, &f.farm))
	f.sector = model.Sector{FarmID: f.farm.ID, Name: "S1"}
	require.NoError(t, svc.CreateSector(ctx, &f.sector))
	unit := model.Unit{SectorID: f.sector.ID, Name: "U1"}
	require.NoError(t, svc.CreateUnit(ctx, &unit))
	f.houseA = model.House{UnitID: unit.ID, Name: "A", Area: 100, AnalyticAccount: "AA-A"}
	require.NoError(t, svc.CreateHouse(ctx, &f.houseA))
	f.houseB = model.House{UnitID: unit.ID, Name: "B", Area: 300}
	require.NoError(t, svc.CreateHouse(ctx, &f.houseB))

	f.project = model.Project{FarmID: f.farm.ID, Name: "Spring 2025"}
	require.NoError(t, svc.CreateProject(ctx, f.rc, &f.project))
	return f
}

// running starts the project and assigns A to tomatoes (1000 kg) and B to
// peppers (500 kg).
func (f *fixture) running(t *testing.T) (model.HouseAssignment, model.HouseAssignment) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.StartProject(ctx, f.rc, f.project.ID)
	require.NoError(t, err)
	a := model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseA.ID, ProductID: 1, ExpectedQty: 1000}
	require.NoError(t, f.svc.AssignHouse(ctx, &a))
	b := model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseB.ID, ProductID: 2, ExpectedQty: 500}
	require.NoError(t, f.svc.AssignHouse(ctx, &b))
	return a, b
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// sectorCost is a draft direct cost over the whole sector.
func (f *fixture) sectorCost(amount float64) *model.Cost {
	return &model.Cost{
		ProjectID:      f.project.ID,
		Type:           model.CostDirect,
		Amount:         amount,
		Scope:          model.Scope{SectorIDs: []int64{f.sector.ID}},
		PaymentAccount: "1010",
		CostAccount:    "6100",
	}
}

func amountsByHouse(rows []model.Allocation) map[int64]float64 {
	out := map[int64]float64{}
	for _, r := range rows {
		out[r.HouseID] += r.AllocatedAmount
	}
	return out
}
