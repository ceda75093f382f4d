package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/resilience"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, DefaultCatalog().Apply(m))
	m.AddLocation(Location{ID: "Partners/Customers", Usage: UsageCustomer})
	m.AddProduct(Product{ID: 1, Code: "7001", Name: "Tomatoes", Storable: true, StandardPrice: 4})
	m.AddProduct(Product{ID: 2, Code: "5001", Name: "Fertilizer", Storable: true, StandardPrice: 10})
	return m
}

func TestMemory_ReceiptCreatesLayer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)

	tr, err := m.CreateTransfer(ctx, TransferRequest{
		Origin: "HRV/00001",
		Source: "Virtual/Production",
		Dest:   "WH/Stock",
		Lines:  []TransferLine{{ProductID: 1, Quantity: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, TransferAssigned, tr.State)

	done, err := m.ValidateTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, TransferDone, done.State)

	qty, err := m.OnHand(ctx, 1, "WH/Stock")
	require.NoError(t, err)
	assert.InDelta(t, 100, qty, 1e-9)

	layers, err := m.OpenLayers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.InDelta(t, 400, layers[0].RemainingValue, 1e-9)
}

func TestMemory_DeliveryConsumesFIFO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)
	require.NoError(t, m.AddStock(2, "WH/Stock", 10, 5))
	require.NoError(t, m.AddStock(2, "WH/Stock", 10, 8))

	tr, err := m.CreateTransfer(ctx, TransferRequest{
		Source: "WH/Stock",
		Dest:   "Virtual/Production",
		Lines:  []TransferLine{{ProductID: 2, Quantity: 15}},
	})
	require.NoError(t, err)
	require.Equal(t, TransferAssigned, tr.State)
	_, err = m.ValidateTransfer(ctx, tr.ID)
	require.NoError(t, err)

	layers, err := m.OpenLayers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.InDelta(t, 5, layers[0].RemainingQty, 1e-9)
	assert.InDelta(t, 40, layers[0].RemainingValue, 1e-9)

	avail, err := m.Available(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 5, avail, 1e-9)
}

func TestMemory_ReservationUnavailableIsTransient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)

	tr, err := m.CreateTransfer(ctx, TransferRequest{
		Source: "WH/Stock",
		Dest:   "Virtual/Production",
		Lines:  []TransferLine{{ProductID: 2, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, TransferDraft, tr.State)

	_, err = m.ValidateTransfer(ctx, tr.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReservation)
	assert.True(t, resilience.IsTransient(err))

	require.NoError(t, m.AddStock(2, "WH/Stock", 3, 10))
	done, err := m.ValidateTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, TransferDone, done.State)
}

func TestMemory_CancelDoneNeedsForce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)

	tr, err := m.CreateTransfer(ctx, TransferRequest{
		Source: "Virtual/Production",
		Dest:   "WH/Stock",
		Lines:  []TransferLine{{ProductID: 1, Quantity: 50}},
	})
	require.NoError(t, err)
	_, err = m.ValidateTransfer(ctx, tr.ID)
	require.NoError(t, err)

	assert.Error(t, m.CancelTransfer(ctx, tr.ID, false))
	require.NoError(t, m.CancelTransfer(ctx, tr.ID, true))

	qty, err := m.OnHand(ctx, 1, "WH/Stock")
	require.NoError(t, err)
	assert.InDelta(t, 0, qty, 1e-9)

	got, err := m.Transfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, TransferCancelled, got.State)

	// cancelling twice is a no-op
	assert.NoError(t, m.CancelTransfer(ctx, tr.ID, true))
	_, err = m.ValidateTransfer(ctx, tr.ID)
	assert.Error(t, err)
}

func TestMemory_CreateTransferRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)

	tests := []struct {
		name string
		req  TransferRequest
	}{
		{"unknown source", TransferRequest{Source: "nope", Dest: "WH/Stock", Lines: []TransferLine{{ProductID: 1, Quantity: 1}}}},
		{"unknown dest", TransferRequest{Source: "WH/Stock", Dest: "nope", Lines: []TransferLine{{ProductID: 1, Quantity: 1}}}},
		{"no lines", TransferRequest{Source: "WH/Stock", Dest: "Virtual/Production"}},
		{"unknown product", TransferRequest{Source: "WH/Stock", Dest: "Virtual/Production", Lines: []TransferLine{{ProductID: 99, Quantity: 1}}}},
		{"zero quantity", TransferRequest{Source: "WH/Stock", Dest: "Virtual/Production", Lines: []TransferLine{{ProductID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateTransfer(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestMemory_PricesAndLayers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := seeded(t)
	require.NoError(t, m.AddStock(1, "WH/Stock", 10, 4))

	require.NoError(t, m.SetStandardPrice(ctx, 1, 6.5))
	p, err := m.Product(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, p.StandardPrice, 1e-9)

	layers, err := m.OpenLayers(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, m.SetLayerValue(ctx, layers[0].ID, 65))
	layers, err = m.OpenLayers(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 65, layers[0].RemainingValue, 1e-9)

	assert.Error(t, m.SetLayerValue(ctx, 999, 1))
	assert.Error(t, m.SetStandardPrice(ctx, 999, 1))
	_, err = m.Product(ctx, 999)
	assert.Error(t, err)
	assert.Error(t, m.AddStock(1, "Virtual/Production", 1, 1))
}
