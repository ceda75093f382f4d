package model

import (
	"fmt"
	"slices"
	"time"
)

// CostType selects how a cost picks its target houses.
type CostType string

const (
	CostDirect   CostType = "direct"
	CostIndirect CostType = "indirect"
)

// IsValid reports whether t is a known cost type.
func (t CostType) IsValid() bool {
	return t == CostDirect || t == CostIndirect
}

// CostState is the posting state of a cost.
type CostState string

const (
	CostDraft     CostState = "draft"
	CostPosted    CostState = "posted"
	CostCancelled CostState = "cancelled"
)

// Scope is a set of hierarchy selections. Empty means "nothing selected".
type Scope struct {
	SectorIDs []int64 `json:"sector_ids,omitempty"`
	UnitIDs   []int64 `json:"unit_ids,omitempty"`
	HouseIDs  []int64 `json:"house_ids,omitempty"`
}

// IsEmpty reports whether no sector, unit or house is selected.
func (s Scope) IsEmpty() bool {
	return len(s.SectorIDs) == 0 && len(s.UnitIDs) == 0 && len(s.HouseIDs) == 0
}

// Cost is a monetary charge against a project.
type Cost struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	Name           string    `json:"name"`
	Type           CostType  `json:"type"`
	State          CostState `json:"state"`
	Amount         float64   `json:"amount"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description,omitempty"`
	Scope          Scope     `json:"scope"`
	PaymentAccount string    `json:"payment_account,omitempty"`
	CostAccount    string    `json:"cost_account,omitempty"`
	OrderID        int64     `json:"order_id,omitempty"`
	HarvestEntryID int64     `json:"harvest_entry_id,omitempty"`
	JournalEntryID string    `json:"journal_entry_id,omitempty"`
}

// HarvestDerived reports whether the cost was produced by a harvest entry.
func (c Cost) HarvestDerived() bool {
	return c.HarvestEntryID != 0
}

// Allocation is one house's share of a cost.
type Allocation struct {
	ID              int64   `json:"id"`
	CostID          int64   `json:"cost_id"`
	ProjectID       int64   `json:"project_id"`
	HouseID         int64   `json:"house_id"`
	HouseArea       float64 `json:"house_area"`
	AllocatedAmount float64 `json:"allocated_amount"`
	Percentage      float64 `json:"percentage"`
}

// CostPerSqm is the allocated amount spread over the house area.
func (a Allocation) CostPerSqm() float64 {
	if a.HouseArea <= 0 {
		return 0
	}
	return a.AllocatedAmount / a.HouseArea
}

// AllocationLine is an allocation joined with the state of its cost.
type AllocationLine struct {
	Allocation
	CostState      CostState `json:"cost_state"`
	CostType       CostType  `json:"cost_type"`
	CostAccount    string    `json:"cost_account,omitempty"`
	HarvestDerived bool      `json:"harvest_derived"`
}

// CountsAsRealCost reports whether the line contributes to a house's real
// cost: posted and not derived from a harvest.
func (l AllocationLine) CountsAsRealCost() bool {
	return l.CostState == CostPosted && !l.HarvestDerived
}

// Clone returns a deep copy of the scope.
func (s Scope) Clone() Scope {
	return Scope{
		SectorIDs: slices.Clone(s.SectorIDs),
		UnitIDs:   slices.Clone(s.UnitIDs),
		HouseIDs:  slices.Clone(s.HouseIDs),
	}
}

// SeqName formats a display reference such as COST/00042.
func SeqName(prefix string, id int64) string {
	return fmt.Sprintf("%s/%05d", prefix, id)
}

// Sequence prefixes.
const (
	SeqCost    = "COST"
	SeqHarvest = "HRV"
	SeqOrder   = "ORD"
)
