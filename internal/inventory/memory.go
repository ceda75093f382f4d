package inventory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/resilience"
)

// ErrReservation is returned when an internal source lacks the stock a
// transfer needs. It is transient: stock may arrive before a retry.
var ErrReservation = errors.New("inventory: reservation unavailable")

// Memory is an in-process Inventory with FIFO valuation layers.
type Memory struct {
	mu        sync.Mutex
	products  map[int64]Product
	locations map[string]Location
	quants    map[quantKey]float64
	layers    []Layer
	transfers map[string]*Transfer
	nextLayer int64
}

type quantKey struct {
	product  int64
	location string
}

// NewMemory returns an empty Memory inventory.
func NewMemory() *Memory {
	return &Memory{
		products:  map[int64]Product{},
		locations: map[string]Location{},
		quants:    map[quantKey]float64{},
		transfers: map[string]*Transfer{},
	}
}

// AddLocation registers a location.
func (m *Memory) AddLocation(l Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[l.ID] = l
}

// AddProduct registers or replaces a product.
func (m *Memory) AddProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// AddStock places quantity of a product in an internal location with a
// valuation layer at unitCost.
func (m *Memory) AddStock(productID int64, location string, qty, unitCost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return eris.Errorf("inventory: unknown product %d", productID)
	}
	loc, ok := m.locations[location]
	if !ok || loc.Usage != UsageInternal {
		return eris.Errorf("inventory: %q is not an internal location", location)
	}
	m.quants[quantKey{productID, location}] += qty
	m.pushLayer(productID, qty, qty*unitCost)
	return nil
}

func (m *Memory) pushLayer(productID int64, qty, value float64) {
	m.nextLayer++
	m.layers = append(m.layers, Layer{ID: m.nextLayer, ProductID: productID, RemainingQty: qty, RemainingValue: value})
}

// consumeLayers takes qty out of the oldest open layers.
func (m *Memory) consumeLayers(productID int64, qty float64) {
	for i := range m.layers {
		if qty <= 0 {
			return
		}
		l := &m.layers[i]
		if l.ProductID != productID || l.RemainingQty <= 0 {
			continue
		}
		take := min(qty, l.RemainingQty)
		unit := l.RemainingValue / l.RemainingQty
		l.RemainingQty -= take
		l.RemainingValue -= take * unit
		qty -= take
	}
}

func (m *Memory) CreateTransfer(_ context.Context, req TransferRequest) (*Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.locations[req.Source]
	if !ok {
		return nil, eris.Errorf("inventory: unknown source location %q", req.Source)
	}
	if _, ok := m.locations[req.Dest]; !ok {
		return nil, eris.Errorf("inventory: unknown destination location %q", req.Dest)
	}
	if len(req.Lines) == 0 {
		return nil, eris.New("inventory: transfer has no lines")
	}
	for _, l := range req.Lines {
		if _, ok := m.products[l.ProductID]; !ok {
			return nil, eris.Errorf("inventory: unknown product %d", l.ProductID)
		}
		if l.Quantity <= 0 {
			return nil, eris.Errorf("inventory: non-positive quantity for product %d", l.ProductID)
		}
	}

	t := &Transfer{
		ID:     uuid.New().String(),
		Origin: req.Origin,
		Source: req.Source,
		Dest:   req.Dest,
		Lines:  slices.Clone(req.Lines),
		State:  TransferDraft,
	}
	if src.Usage != UsageInternal || m.reservable(t) {
		t.State = TransferAssigned
	}
	m.transfers[t.ID] = t
	out := *t
	return &out, nil
}

func (m *Memory) reservable(t *Transfer) bool {
	for _, l := range t.Lines {
		if m.quants[quantKey{l.ProductID, t.Source}] < l.Quantity {
			return false
		}
	}
	return true
}

func (m *Memory) ValidateTransfer(_ context.Context, id string) (*Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[id]
	if !ok {
		return nil, eris.Errorf("inventory: unknown transfer %s", id)
	}
	switch t.State {
	case TransferDone:
		out := *t
		return &out, nil
	case TransferCancelled:
		return nil, eris.Errorf("inventory: transfer %s is cancelled", id)
	case TransferDraft:
		if m.locations[t.Source].Usage == UsageInternal && !m.reservable(t) {
			return nil, resilience.NewTransientError(ErrReservation, 0)
		}
	}

	m.move(t.Source, t.Dest, t.Lines)
	t.State = TransferDone
	out := *t
	return &out, nil
}

// move applies quantity and valuation effects of lines going from src to dst.
func (m *Memory) move(src, dst string, lines []TransferLine) {
	srcInternal := m.locations[src].Usage == UsageInternal
	dstInternal := m.locations[dst].Usage == UsageInternal
	for _, l := range lines {
		if srcInternal {
			m.quants[quantKey{l.ProductID, src}] -= l.Quantity
		}
		if dstInternal {
			m.quants[quantKey{l.ProductID, dst}] += l.Quantity
		}
		switch {
		case dstInternal && !srcInternal:
			m.pushLayer(l.ProductID, l.Quantity, l.Quantity*m.products[l.ProductID].StandardPrice)
		case srcInternal && !dstInternal:
			m.consumeLayers(l.ProductID, l.Quantity)
		}
	}
}

func (m *Memory) CancelTransfer(_ context.Context, id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[id]
	if !ok {
		return eris.Errorf("inventory: unknown transfer %s", id)
	}
	switch t.State {
	case TransferCancelled:
		return nil
	case TransferDone:
		if !force {
			return eris.Errorf("inventory: transfer %s is done", id)
		}
		m.move(t.Dest, t.Source, t.Lines)
	}
	t.State = TransferCancelled
	return nil
}

func (m *Memory) Transfer(_ context.Context, id string) (*Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, eris.Errorf("inventory: unknown transfer %s", id)
	}
	out := *t
	out.Lines = slices.Clone(t.Lines)
	return &out, nil
}

func (m *Memory) OnHand(_ context.Context, productID int64, location string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quants[quantKey{productID, location}], nil
}

func (m *Memory) Available(_ context.Context, productID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for k, qty := range m.quants {
		if k.product == productID && m.locations[k.location].Usage == UsageInternal {
			total += qty
		}
	}
	return total, nil
}

func (m *Memory) Product(_ context.Context, id int64) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, eris.Errorf("inventory: unknown product %d", id)
	}
	return &p, nil
}

func (m *Memory) SetStandardPrice(_ context.Context, productID int64, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return eris.Errorf("inventory: unknown product %d", productID)
	}
	p.StandardPrice = price
	m.products[productID] = p
	return nil
}

// OpenLayers returns the product's layers that still hold quantity.
func (m *Memory) OpenLayers(_ context.Context, productID int64) ([]Layer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Layer
	for _, l := range m.layers {
		if l.ProductID == productID && l.RemainingQty > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) SetLayerValue(_ context.Context, layerID int64, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.layers {
		if m.layers[i].ID == layerID {
			m.layers[i].RemainingValue = value
			return nil
		}
	}
	return eris.Errorf("inventory: unknown layer %d", layerID)
}

func (m *Memory) Location(_ context.Context, id string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *Memory) LocationByRef(_ context.Context, ref string) (*Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.sortedLocations() {
		if l.Ref == ref {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *Memory) LocationsByUsage(_ context.Context, usage Usage) ([]Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Location
	for _, l := range m.sortedLocations() {
		if l.Usage == usage {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) sortedLocations() []Location {
	out := make([]Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b Location) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
