package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProjectStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProjectStatus
		valid   bool
		accepts bool
	}{
		{ProjectDraft, true, true},
		{ProjectInProgress, true, true},
		{ProjectPaused, true, true},
		{ProjectCompleted, true, false},
		{ProjectCancelled, true, false},
		{"archived", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.accepts, tt.status.AcceptsCosts())
		})
	}
}

func TestCostType_IsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, CostDirect.IsValid())
	assert.True(t, CostIndirect.IsValid())
	assert.False(t, CostType("shared").IsValid())
}

func TestScope(t *testing.T) {
	t.Parallel()

	assert.True(t, Scope{}.IsEmpty())
	assert.False(t, Scope{UnitIDs: []int64{4}}.IsEmpty())

	s := Scope{SectorIDs: []int64{1}, HouseIDs: []int64{2, 3}}
	c := s.Clone()
	c.HouseIDs[0] = 99
	assert.Equal(t, int64(2), s.HouseIDs[0])
	assert.Nil(t, c.UnitIDs)
}

func TestAllocation_CostPerSqm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    Allocation
		want float64
	}{
		{"normal", Allocation{HouseArea: 200, AllocatedAmount: 500}, 2.5},
		{"zero area", Allocation{HouseArea: 0, AllocatedAmount: 500}, 0},
		{"negative area", Allocation{HouseArea: -1, AllocatedAmount: 500}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.a.CostPerSqm(), 1e-9)
		})
	}
}

func TestAllocationLine_CountsAsRealCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		l    AllocationLine
		want bool
	}{
		{"posted", AllocationLine{CostState: CostPosted}, true},
		{"draft", AllocationLine{CostState: CostDraft}, false},
		{"cancelled", AllocationLine{CostState: CostCancelled}, false},
		{"harvest derived", AllocationLine{CostState: CostPosted, HarvestDerived: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.l.CountsAsRealCost())
		})
	}
}

func TestHarvestEntry(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unit cost", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 2.0, HarvestEntry{Quantity: 400, AllocatedCost: 800}.UnitCost(), 1e-9)
		assert.Zero(t, HarvestEntry{Quantity: 0, AllocatedCost: 800}.UnitCost())
	})

	t.Run("ordering", func(t *testing.T) {
		t.Parallel()
		a := HarvestEntry{ID: 5, Date: day}
		b := HarvestEntry{ID: 2, Date: day.AddDate(0, 0, 1)}
		c := HarvestEntry{ID: 7, Date: day}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
		assert.True(t, a.Before(c))
		assert.False(t, c.Before(a))
		assert.False(t, a.Before(a))
	})
}

func TestProductOrder_Total(t *testing.T) {
	t.Parallel()

	o := ProductOrder{Lines: []OrderLine{
		{Quantity: 20, UnitPrice: 10},
		{Quantity: 1.5, UnitPrice: 4},
	}}
	assert.InDelta(t, 206.0, o.Total(), 1e-9)
	assert.Zero(t, ProductOrder{}.Total())
}

func TestSeqName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "COST/00042", SeqName(SeqCost, 42))
	assert.Equal(t, "HRV/123456", SeqName(SeqHarvest, 123456))
}

func TestRequestContext_Now(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rc := RequestContext{Clock: func() time.Time { return fixed }}
	assert.Equal(t, fixed, rc.Now())
	assert.WithinDuration(t, time.Now(), RequestContext{}.Now(), time.Minute)
}
