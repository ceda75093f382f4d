package model

import "time"

// OrderState is the approval stage of a product order.
type OrderState string

const (
	OrderDraft              OrderState = "draft"
	OrderOwnerApproval      OrderState = "owner_approval"
	OrderInventoryApproval  OrderState = "inventory_approval"
	OrderAccountingApproval OrderState = "accounting_approval"
	OrderDone               OrderState = "done"
	OrderCancelled          OrderState = "cancelled"
)

// ProductOrder requests inventory for a project's houses.
type ProductOrder struct {
	ID             int64       `json:"id"`
	ProjectID      int64       `json:"project_id"`
	Name           string      `json:"name"`
	State          OrderState  `json:"state"`
	IsDirect       bool        `json:"is_direct"`
	RequesterID    string      `json:"requester_id,omitempty"`
	RequestDate    time.Time   `json:"request_date"`
	Notes          string      `json:"notes,omitempty"`
	Scope          Scope       `json:"scope"`
	TransferID     string      `json:"transfer_id,omitempty"`
	JournalEntryID string      `json:"journal_entry_id,omitempty"`
	Lines          []OrderLine `json:"lines"`
}

// Total sums the line subtotals.
func (o ProductOrder) Total() float64 {
	var total float64
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	return total
}

// OrderLine is one requested product.
type OrderLine struct {
	ID            int64   `json:"id"`
	OrderID       int64   `json:"order_id"`
	ProductID     int64   `json:"product_id" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	UnitPrice     float64 `json:"unit_price"`
	Justification string  `json:"justification"`
}

// Subtotal is quantity times unit price.
func (l OrderLine) Subtotal() float64 {
	return l.Quantity * l.UnitPrice
}
