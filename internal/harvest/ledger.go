// Package harvest spreads a house's accumulated cost over its harvest
// entries in (date, id) order.
//
// Each entry takes remaining * quantity / expected of the cost still left
// after the entries before it. Because the ratio is taken against the
// expected yield rather than the quantity still to harvest, the entries
// only consume the full house cost when cumulative quantity reaches the
// expected quantity.
package harvest

import (
	"math"
	"slices"

	"github.com/sells-group/farm-ledger/internal/model"
)

const epsilon = 1e-9

// Compute returns the cost remaining before an entry and the share the
// entry takes. A missing expected quantity yields zero for both.
func Compute(totalHouseCost, previous, quantity, expectedQty float64) (remainingBefore, allocated float64) {
	if expectedQty <= 0 {
		return 0, 0
	}
	remainingBefore = totalHouseCost - previous
	return remainingBefore, remainingBefore * (quantity / expectedQty)
}

// Sort orders entries by (date, id).
func Sort(entries []model.HarvestEntry) {
	slices.SortStableFunc(entries, func(a, b model.HarvestEntry) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
}

// Derive recomputes every entry in place, in ledger order, and returns the
// indexes of entries whose figures changed. Entries in every state take
// part: a cancelled entry still holds its share.
func Derive(entries []model.HarvestEntry, totalHouseCost, expectedQty float64) []int {
	Sort(entries)
	var changed []int
	var previous float64
	for i := range entries {
		e := &entries[i]
		remaining, allocated := Compute(totalHouseCost, previous, e.Quantity, expectedQty)
		if !same(remaining, e.RemainingCostBefore) || !same(allocated, e.AllocatedCost) {
			e.RemainingCostBefore = remaining
			e.AllocatedCost = allocated
			changed = append(changed, i)
		}
		previous += e.AllocatedCost
	}
	return changed
}

func same(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Progress is quantity as a percentage of the expected quantity.
func Progress(quantity, expectedQty float64) float64 {
	if expectedQty <= 0 {
		return 0
	}
	return quantity / expectedQty * 100
}

// Cumulative holds to-date aggregates up to and including one entry.
type Cumulative struct {
	EntryID   int64   `json:"entry_id"`
	Harvested float64 `json:"cumulative_harvested"`
	Allocated float64 `json:"cumulative_allocated"`
	Progress  float64 `json:"cumulative_progress"`
}

// Cumulatives returns one running aggregate per entry in ledger order.
func Cumulatives(entries []model.HarvestEntry, expectedQty float64) []Cumulative {
	sorted := slices.Clone(entries)
	Sort(sorted)
	out := make([]Cumulative, len(sorted))
	var qty, cost float64
	for i, e := range sorted {
		qty += e.Quantity
		cost += e.AllocatedCost
		out[i] = Cumulative{EntryID: e.ID, Harvested: qty, Allocated: cost, Progress: Progress(qty, expectedQty)}
	}
	return out
}

// HouseCost sums the real posted cost allocated to a house.
func HouseCost(lines []model.AllocationLine) float64 {
	var total float64
	for _, l := range lines {
		if l.CountsAsRealCost() {
			total += l.AllocatedAmount
		}
	}
	return total
}

// Stats are the read-only figures of one house assignment.
type Stats struct {
	AssignmentID    int64   `json:"assignment_id"`
	HouseID         int64   `json:"house_id"`
	TotalHarvested  float64 `json:"total_harvested"`
	HarvestCount    int     `json:"harvest_count"`
	Progress        float64 `json:"progress"`
	TotalHouseCost  float64 `json:"total_house_cost"`
	TotalAllocated  float64 `json:"total_allocated_cost"`
	RemainingCost   float64 `json:"remaining_cost"`
	AverageUnitCost float64 `json:"average_unit_cost"`
}

// Summarize computes assignment stats over its done entries.
func Summarize(a model.HouseAssignment, entries []model.HarvestEntry, lines []model.AllocationLine) Stats {
	s := Stats{AssignmentID: a.ID, HouseID: a.HouseID, TotalHouseCost: HouseCost(lines)}
	for _, e := range entries {
		if e.State != model.HarvestDone {
			continue
		}
		s.HarvestCount++
		s.TotalHarvested += e.Quantity
		s.TotalAllocated += e.AllocatedCost
	}
	s.Progress = Progress(s.TotalHarvested, a.ExpectedQty)
	s.RemainingCost = s.TotalHouseCost - s.TotalAllocated
	if s.TotalHarvested > 0 {
		s.AverageUnitCost = s.TotalAllocated / s.TotalHarvested
	}
	return s
}
