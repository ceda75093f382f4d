package model

import "time"

// LayerSnapshot records a valuation layer's value before an AVCO rewrite.
type LayerSnapshot struct {
	LayerID       int64   `json:"layer_id"`
	PreviousValue float64 `json:"previous_value"`
}

// AVCOAudit is the record left behind by one house's AVCO recompute.
type AVCOAudit struct {
	ID              int64           `json:"id"`
	ProjectID       int64           `json:"project_id"`
	HouseID         int64           `json:"house_id"`
	ProductID       int64           `json:"product_id"`
	TargetUnitCost  float64         `json:"target_unit_cost"`
	TotalAllocated  float64         `json:"total_allocated"`
	TotalQuantity   float64         `json:"total_quantity"`
	PreviousPrice   float64         `json:"previous_price"`
	HarvestEntryIDs []int64         `json:"harvest_entry_ids"`
	TransferIDs     []string        `json:"transfer_ids"`
	Layers          []LayerSnapshot `json:"layers"`
	JournalEntryID  string          `json:"journal_entry_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Note is an append-only log line attached to a record.
type Note struct {
	ID        int64     `json:"id"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Note entity kinds.
const (
	EntityCost    = "cost"
	EntityHarvest = "harvest"
	EntityProject = "project"
	EntityOrder   = "order"
)

// Outcome is the result of an action verb: the record it acted on and the
// log line written for it. Warning marks a soft failure.
type Outcome struct {
	Entity  string `json:"entity"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}
