package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
)

func (f *fixture) fertilizerOrder(qty float64, direct bool) *model.ProductOrder {
	return &model.ProductOrder{
		ProjectID: f.project.ID,
		IsDirect:  direct,
		Scope:     model.Scope{SectorIDs: []int64{f.sector.ID}},
		Lines:     []model.OrderLine{{ProductID: 3, Quantity: qty, Justification: "  second feeding round  "}},
	}
}

func TestOrderApprovalChain(t *testing.T) {
	f := newFixture(t)
	f.running(t)
	ctx := context.Background()

	o := f.fertilizerOrder(20, false)
	require.NoError(t, f.svc.CreateOrder(ctx, f.rc, o))
	assert.Equal(t, model.OrderDraft, o.State)
	assert.Equal(t, "tester", o.RequesterID)
	assert.InDelta(t, 10, o.Lines[0].UnitPrice, 1e-9)
	assert.Equal(t, "second feeding round", o.Lines[0].Justification)

	_, err := f.svc.OwnerApproveOrder(ctx, f.rc, o.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err))

	_, err = f.svc.SubmitOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	_, err = f.svc.OwnerApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	_, err = f.svc.InventoryApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderAccountingApproval, got.State)
	require.NotEmpty(t, got.TransferID)
	avail, err := f.inv.Available(ctx, 3)
	require.NoError(t, err)
	assert.InDelta(t, 30, avail, 1e-9)

	_, err = f.svc.AccountingApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	got, err = f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDone, got.State)

	entry, err := f.ledger.Entry(ctx, got.JournalEntryID)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, "6200", entry.Lines[0].Account)
	assert.True(t, entry.Lines[0].Debit.Equal(ledger.Amount(200, 2)))
	assert.Equal(t, "1400", entry.Lines[1].Account)

	costs, err := f.svc.ProjectCosts(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, costs, 1)
	c := costs[0]
	assert.Equal(t, o.ID, c.OrderID)
	assert.Equal(t, model.CostPosted, c.State)
	assert.Equal(t, "6200", c.CostAccount)
	assert.Empty(t, c.JournalEntryID, "the order supplies the journal entry")
	assert.InDelta(t, 200, c.Amount, 1e-9)
	rows, err := f.svc.CostAllocations(ctx, c.ID)
	require.NoError(t, err)
	byHouse := amountsByHouse(rows)
	assert.InDelta(t, 50, byHouse[f.houseA.ID], 1e-9)
	assert.InDelta(t, 150, byHouse[f.houseB.ID], 1e-9)

	_, err = f.svc.CancelOrder(ctx, f.rc, o.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err), "done orders stay done")
}

func TestInventoryApprove_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.running(t)
	ctx := context.Background()

	o := f.fertilizerOrder(80, true)
	require.NoError(t, f.svc.CreateOrder(ctx, f.rc, o))
	_, err := f.svc.SubmitOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)

	_, err = f.svc.InventoryApproveOrder(ctx, f.rc, o.ID)
	require.Error(t, err)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err))
	assert.Contains(t, err.Error(), "Fertilizer")

	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderInventoryApproval, got.State, "a failed approval changes nothing")
}

func TestDirectOrder_NeedsLinkedJournal(t *testing.T) {
	f := newFixture(t)
	f.running(t)
	ctx := context.Background()

	o := f.fertilizerOrder(5, true)
	require.NoError(t, f.svc.CreateOrder(ctx, f.rc, o))
	_, err := f.svc.SubmitOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderInventoryApproval, got.State, "direct orders skip the owner")

	_, err = f.svc.InventoryApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	_, err = f.svc.AccountingApproveOrder(ctx, f.rc, o.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err))

	_, err = f.svc.LinkOrderJournal(ctx, f.rc, o.ID, "missing")
	assert.Equal(t, farmerr.Validation, farmerr.KindOf(err))

	manual, err := f.ledger.Post(ctx, ledger.Entry{Ref: "manual", Lines: ledger.Pair("6200", "1010", ledger.Amount(50, 2), "manual")})
	require.NoError(t, err)
	_, err = f.svc.LinkOrderJournal(ctx, f.rc, o.ID, manual.ID)
	require.NoError(t, err)
	_, err = f.svc.AccountingApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)

	got, err = f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDone, got.State)
	assert.Equal(t, manual.ID, got.JournalEntryID)
	assert.Len(t, f.ledger.Entries(), 1, "no automatic entry for direct orders")
}

func TestCancelAndResetOrder(t *testing.T) {
	f := newFixture(t)
	f.running(t)
	ctx := context.Background()

	o := f.fertilizerOrder(10, true)
	require.NoError(t, f.svc.CreateOrder(ctx, f.rc, o))
	_, err := f.svc.ResetOrder(ctx, f.rc, o.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err))

	_, err = f.svc.SubmitOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	_, err = f.svc.InventoryApproveOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	avail, err := f.inv.Available(ctx, 3)
	require.NoError(t, err)
	assert.InDelta(t, 40, avail, 1e-9)

	_, err = f.svc.CancelOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	avail, err = f.inv.Available(ctx, 3)
	require.NoError(t, err)
	assert.InDelta(t, 50, avail, 1e-9, "cancelling returns the stock")

	_, err = f.svc.CancelOrder(ctx, f.rc, o.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err), "already cancelled")
	notes, err := f.svc.Notes(ctx, model.EntityOrder, o.ID)
	require.NoError(t, err)
	cancelled := 0
	for _, n := range notes {
		if n.Body == "order cancelled" {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)

	_, err = f.svc.ResetOrder(ctx, f.rc, o.ID)
	require.NoError(t, err)
	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDraft, got.State)
	assert.Empty(t, got.TransferID)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.fertilizerOrder(5, false)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(f.svc.CreateOrder(ctx, f.rc, o)), "project not started")

	f.running(t)
	tests := []struct {
		name   string
		mutate func(o *model.ProductOrder)
	}{
		{"short justification", func(o *model.ProductOrder) { o.Lines[0].Justification = "   too short   " }},
		{"zero quantity", func(o *model.ProductOrder) { o.Lines[0].Quantity = 0 }},
		{"unknown product", func(o *model.ProductOrder) { o.Lines[0].ProductID = 77 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := f.fertilizerOrder(5, false)
			tt.mutate(o)
			assert.Equal(t, farmerr.Validation, farmerr.KindOf(f.svc.CreateOrder(ctx, f.rc, o)))
		})
	}

	empty := &model.ProductOrder{ProjectID: f.project.ID, Scope: model.Scope{HouseIDs: []int64{f.houseA.ID}}}
	require.NoError(t, f.svc.CreateOrder(ctx, f.rc, empty))
	_, err := f.svc.SubmitOrder(ctx, f.rc, empty.ID)
	assert.Equal(t, farmerr.Precondition, farmerr.KindOf(err))
}
