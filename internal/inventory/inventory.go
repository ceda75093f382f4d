// Package inventory defines the stock collaborator the farm ledger drives:
// transfers, on-hand quantities, product prices and valuation layers.
package inventory

import (
	"context"
)

// TransferState is the lifecycle of a stock transfer.
type TransferState string

const (
	TransferDraft     TransferState = "draft"
	TransferAssigned  TransferState = "assigned"
	TransferDone      TransferState = "done"
	TransferCancelled TransferState = "cancelled"
)

// Usage classifies a stock location.
type Usage string

const (
	UsageInternal   Usage = "internal"
	UsageProduction Usage = "production"
	UsageSupplier   Usage = "supplier"
	UsageCustomer   Usage = "customer"
	UsageInventory  Usage = "inventory"
)

// Location is a place stock can sit. Only internal locations hold stock.
type Location struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Usage Usage  `json:"usage" yaml:"usage"`
	Ref   string `json:"ref,omitempty" yaml:"ref"`
}

// Product is an inventory item with its accounting references.
type Product struct {
	ID                 int64   `json:"id" yaml:"id"`
	Code               string  `json:"code" yaml:"code"`
	Name               string  `json:"name" yaml:"name"`
	UOM                string  `json:"uom" yaml:"uom"`
	Storable           bool    `json:"storable" yaml:"storable"`
	StandardPrice      float64 `json:"standard_price" yaml:"standard_price"`
	ValuationAccount   string  `json:"valuation_account,omitempty" yaml:"valuation_account"`
	OrderSourceAccount string  `json:"order_source_account,omitempty" yaml:"order_source_account"`
	OrderDestAccount   string  `json:"order_dest_account,omitempty" yaml:"order_dest_account"`
}

// Layer is a FIFO valuation layer of a product.
type Layer struct {
	ID             int64   `json:"id"`
	ProductID      int64   `json:"product_id"`
	RemainingQty   float64 `json:"remaining_qty"`
	RemainingValue float64 `json:"remaining_value"`
}

// TransferLine is one product movement within a transfer.
type TransferLine struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UOM       string  `json:"uom,omitempty"`
}

// TransferRequest describes a transfer to create.
type TransferRequest struct {
	Origin string         `json:"origin"`
	Source string         `json:"source"`
	Dest   string         `json:"dest"`
	Lines  []TransferLine `json:"lines"`
}

// Transfer is a stock movement handle.
type Transfer struct {
	ID     string         `json:"id"`
	Origin string         `json:"origin"`
	Source string         `json:"source"`
	Dest   string         `json:"dest"`
	Lines  []TransferLine `json:"lines"`
	State  TransferState  `json:"state"`
}

// Inventory is the stock collaborator.
type Inventory interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	ValidateTransfer(ctx context.Context, id string) (*Transfer, error)
	// CancelTransfer cancels a transfer. Done transfers are only cancelled
	// when force is set, which reverses their stock effect.
	CancelTransfer(ctx context.Context, id string, force bool) error
	Transfer(ctx context.Context, id string) (*Transfer, error)

	OnHand(ctx context.Context, productID int64, location string) (float64, error)
	Available(ctx context.Context, productID int64) (float64, error)

	Product(ctx context.Context, id int64) (*Product, error)
	SetStandardPrice(ctx context.Context, productID int64, price float64) error
	OpenLayers(ctx context.Context, productID int64) ([]Layer, error)
	SetLayerValue(ctx context.Context, layerID int64, value float64) error

	Location(ctx context.Context, id string) (*Location, error)
	LocationByRef(ctx context.Context, ref string) (*Location, error)
	LocationsByUsage(ctx context.Context, usage Usage) ([]Location, error)
}
