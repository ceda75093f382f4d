package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/model"
)

func TestAssignHouse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := model.Farm{Name: "South"}
	require.NoError(t, f.svc.CreateFarm(ctx, f.rc, &other))
	assert.Equal(t, int64(1), other.CompanyID, "company defaults from the request")
	sec := model.Sector{FarmID: other.ID, Name: "S9"}
	require.NoError(t, f.svc.CreateSector(ctx, &sec))
	unit := model.Unit{SectorID: sec.ID, Name: "U9"}
	require.NoError(t, f.svc.CreateUnit(ctx, &unit))
	foreign := model.House{UnitID: unit.ID, Name: "Z", Area: 50}
	require.NoError(t, f.svc.CreateHouse(ctx, &foreign))

	a := model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseA.ID, ProductID: 1, ExpectedQty: 1000}
	require.NoError(t, f.svc.AssignHouse(ctx, &a))
	assert.Equal(t, "kg", a.UOM)

	tests := []struct {
		name string
		in   model.HouseAssignment
		kind farmerr.Kind
	}{
		{"duplicate house", model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseA.ID}, farmerr.Integrity},
		{"house on another farm", model.HouseAssignment{ProjectID: f.project.ID, HouseID: foreign.ID}, farmerr.Validation},
		{"not a produce product", model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseB.ID, ProductID: 3}, farmerr.Validation},
		{"unknown product", model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseB.ID, ProductID: 42}, farmerr.Validation},
		{"negative expected quantity", model.HouseAssignment{ProjectID: f.project.ID, HouseID: f.houseB.ID, ExpectedQty: -1}, farmerr.Validation},
		{"unknown project", model.HouseAssignment{ProjectID: 999, HouseID: f.houseB.ID}, farmerr.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			assert.Equal(t, tt.kind, farmerr.KindOf(f.svc.AssignHouse(ctx, &in)))
		})
	}

	list, err := f.svc.Assignments(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateHouse_Validation(t *testing.T) {
	f := newFixture(t)
	h := model.House{UnitID: 1, Name: "bad", Area: 0}
	assert.Equal(t, farmerr.Validation, farmerr.KindOf(f.svc.CreateHouse(context.Background(), &h)))
}

func TestFarmSummary(t *testing.T) {
	f := newFixture(t)
	sum, err := f.svc.FarmSummary(context.Background(), f.farm.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Houses)
	assert.InDelta(t, 400, sum.TotalArea, 1e-9)
}

func TestAssignmentStats(t *testing.T) {
	f := newFixture(t)
	assignA, _ := f.running(t)
	ctx := context.Background()

	c := f.sectorCost(4000)
	require.NoError(t, f.svc.CreateCost(ctx, f.rc, c))
	_, err := f.svc.PostCost(ctx, f.rc, c.ID)
	require.NoError(t, err)

	first, err := f.svc.RecordHarvest(ctx, f.rc, harvest.RecordInput{AssignmentID: assignA.ID, Date: f.now, Quantity: 200})
	require.NoError(t, err)
	f.advance(day)
	_, err = f.svc.RecordHarvest(ctx, f.rc, harvest.RecordInput{AssignmentID: assignA.ID, Date: f.now, Quantity: 300})
	require.NoError(t, err)

	st, err := f.svc.AssignmentStats(ctx, assignA.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500, st.TotalHarvested, 1e-9)
	assert.Equal(t, 2, st.HarvestCount)
	assert.InDelta(t, 1000, st.TotalHouseCost, 1e-9)
	// 200 then 0.3 * 800
	assert.InDelta(t, 440, st.TotalAllocated, 1e-9)

	cum, err := f.svc.HarvestCumulatives(ctx, assignA.ID)
	require.NoError(t, err)
	require.Len(t, cum, 2)
	assert.Equal(t, first.ID, cum[0].EntryID)
	assert.InDelta(t, 500, cum[1].Harvested, 1e-9)

	_, err = f.svc.DeleteHarvest(ctx, f.rc, first.ID)
	require.NoError(t, err)
	st, err = f.svc.AssignmentStats(ctx, assignA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.HarvestCount)
	assert.InDelta(t, 300, st.TotalAllocated, 1e-9)
}
