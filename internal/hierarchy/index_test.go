package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/model"
)

// testTree: farm 1 with sector 10 (units 100, 101) and sector 11 (unit 110).
func testTree() model.FarmTree {
	return model.FarmTree{
		Farm: model.Farm{ID: 1, Name: "North"},
		Sectors: []model.Sector{
			{ID: 10, FarmID: 1, Name: "S1"},
			{ID: 11, FarmID: 1, Name: "S2"},
			{ID: 99, FarmID: 2, Name: "Elsewhere"},
		},
		Units: []model.Unit{
			{ID: 100, SectorID: 10, Name: "U1"},
			{ID: 101, SectorID: 10, Name: "U2"},
			{ID: 110, SectorID: 11, Name: "U3"},
			{ID: 990, SectorID: 99, Name: "Foreign"},
		},
		Houses: []model.House{
			{ID: 1003, UnitID: 110, Name: "H4", Area: 50},
			{ID: 1000, UnitID: 100, Name: "H1", Area: 100},
			{ID: 1001, UnitID: 100, Name: "H2", Area: 200},
			{ID: 1002, UnitID: 101, Name: "H3", Area: 300},
			{ID: 9000, UnitID: 990, Name: "Foreign", Area: 10},
		},
	}
}

func houseIDs(hs []model.House) []int64 {
	ids := make([]int64, 0, len(hs))
	for _, h := range hs {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestNew_DropsForeignNodes(t *testing.T) {
	ix := New(testTree())

	assert.Equal(t, []int64{1000, 1001, 1002, 1003}, houseIDs(ix.Houses()))
	assert.False(t, ix.Contains(9000))

	s := ix.Summary()
	assert.Equal(t, 2, s.Sectors)
	assert.Equal(t, 3, s.Units)
	assert.Equal(t, 4, s.Houses)
	assert.InDelta(t, 650, s.TotalArea, 1e-9)
}

func TestIndex_Lookups(t *testing.T) {
	ix := New(testTree())

	h, ok := ix.House(1002)
	require.True(t, ok)
	assert.Equal(t, "H3", h.Name)

	sector, ok := ix.SectorOf(1003)
	require.True(t, ok)
	assert.Equal(t, int64(11), sector)

	assert.Equal(t, []int64{1000, 1001}, houseIDs(ix.HousesInUnit(100)))
	assert.Equal(t, []int64{1000, 1001, 1002}, houseIDs(ix.HousesInSector(10)))
	assert.Equal(t, []int64{100, 101}, ix.UnitsInSector(10))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	ix := New(testTree())

	tests := []struct {
		name  string
		scope model.Scope
		want  []int64
	}{
		{"empty", model.Scope{}, []int64{}},
		{"houses only", model.Scope{HouseIDs: []int64{1003, 1000}}, []int64{1000, 1003}},
		{"unit", model.Scope{UnitIDs: []int64{101}}, []int64{1002}},
		{"sector", model.Scope{SectorIDs: []int64{10}}, []int64{1000, 1001, 1002}},
		{"overlapping union", model.Scope{SectorIDs: []int64{10}, UnitIDs: []int64{100}, HouseIDs: []int64{1001, 1003}}, []int64{1000, 1001, 1002, 1003}},
		{"unknown ids ignored", model.Scope{HouseIDs: []int64{9000, 42}, SectorIDs: []int64{99}}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, houseIDs(ix.Resolve(tt.scope)))
		})
	}
}

func TestRestrictAndArea(t *testing.T) {
	ix := New(testTree())
	got := Restrict(ix.Houses(), map[int64]bool{1000: true, 1002: true})
	assert.Equal(t, []int64{1000, 1002}, houseIDs(got))
	assert.InDelta(t, 400, TotalArea(got), 1e-9)
}
