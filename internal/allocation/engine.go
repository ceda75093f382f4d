// Package allocation distributes cost amounts across houses.
package allocation

import (
	"github.com/sells-group/farm-ledger/internal/hierarchy"
	"github.com/sells-group/farm-ledger/internal/model"
)

// Share is one house's portion of an amount.
type Share struct {
	HouseID    int64
	Area       float64
	Amount     float64
	Percentage float64
}

// Split distributes amount across houses proportional to area. When the
// total area is not positive every house gets an equal share.
func Split(amount float64, houses []model.House) []Share {
	if len(houses) == 0 {
		return nil
	}

	total := hierarchy.TotalArea(houses)
	shares := make([]Share, len(houses))
	n := float64(len(houses))
	for i, h := range houses {
		s := Share{HouseID: h.ID, Area: h.Area}
		if total > 0 {
			s.Amount = amount * h.Area / total
			s.Percentage = 100 * h.Area / total
		} else {
			s.Amount = amount / n
			s.Percentage = 100 / n
		}
		shares[i] = s
	}
	return shares
}

// Engine allocates a project's costs over its assigned houses.
type Engine struct {
	index    *hierarchy.Index
	assigned map[int64]bool
}

// NewEngine creates an Engine for one project. assigned lists the house ids
// of the project's assignments.
func NewEngine(index *hierarchy.Index, assigned []int64) *Engine {
	set := make(map[int64]bool, len(assigned))
	for _, id := range assigned {
		set[id] = true
	}
	return &Engine{index: index, assigned: set}
}

// Targets resolves the houses a cost is charged to. Indirect costs target
// every assigned house; direct costs target their resolved scope restricted
// to assigned houses.
func (e *Engine) Targets(cost model.Cost) []model.House {
	var candidates []model.House
	switch cost.Type {
	case model.CostIndirect:
		candidates = e.index.Houses()
	case model.CostDirect:
		candidates = e.index.Resolve(cost.Scope)
	default:
		return nil
	}
	return hierarchy.Restrict(candidates, e.assigned)
}

// Allocate computes the allocation rows for a cost. An empty result means
// the cost has no target houses.
func (e *Engine) Allocate(cost model.Cost) []model.Allocation {
	shares := Split(cost.Amount, e.Targets(cost))
	rows := make([]model.Allocation, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, model.Allocation{
			CostID:          cost.ID,
			ProjectID:       cost.ProjectID,
			HouseID:         s.HouseID,
			HouseArea:       s.Area,
			AllocatedAmount: s.Amount,
			Percentage:      s.Percentage,
		})
	}
	return rows
}

// Total sums allocated amounts.
func Total(rows []model.Allocation) float64 {
	var total float64
	for _, r := range rows {
		total += r.AllocatedAmount
	}
	return total
}
