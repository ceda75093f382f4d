package model

import "time"

// HarvestState is the lifecycle of a harvest entry.
type HarvestState string

const (
	HarvestDone      HarvestState = "done"
	HarvestCancelled HarvestState = "cancelled"
)

// HarvestEntry is one harvest event for an assignment.
type HarvestEntry struct {
	ID                  int64        `json:"id"`
	AssignmentID        int64        `json:"assignment_id"`
	Name                string       `json:"name"`
	Date                time.Time    `json:"date"`
	Quantity            float64      `json:"quantity"`
	State               HarvestState `json:"state"`
	Notes               string       `json:"notes,omitempty"`
	RemainingCostBefore float64      `json:"remaining_cost_before"`
	AllocatedCost       float64      `json:"allocated_cost"`
	TransferID          string       `json:"transfer_id,omitempty"`
}

// UnitCost is the allocated cost per harvested unit.
func (e HarvestEntry) UnitCost() float64 {
	if e.Quantity <= 0 {
		return 0
	}
	return e.AllocatedCost / e.Quantity
}

// Before reports whether e sorts before o in ledger order (date, then id).
func (e HarvestEntry) Before(o HarvestEntry) bool {
	if !e.Date.Equal(o.Date) {
		return e.Date.Before(o.Date)
	}
	return e.ID < o.ID
}
