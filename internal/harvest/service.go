package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/metrics"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// RecordInput is a new harvest event.
type RecordInput struct {
	AssignmentID int64     `json:"assignment_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Quantity     float64   `json:"quantity"`
	Notes        string    `json:"notes,omitempty"`
}

// Ledger runs harvest verbs inside a caller's transaction. Every mutation
// re-derives the affected assignment before returning.
type Ledger struct {
	gw      *inventory.Gateway
	source  inventory.Route
	dest    inventory.Route
	metrics *metrics.Metrics
}

// NewLedger builds a Ledger moving harvested stock through gw.
func NewLedger(gw *inventory.Gateway, cfg config.InventoryConfig, m *metrics.Metrics) *Ledger {
	src, dst, _, _ := inventory.Routes(cfg)
	return &Ledger{gw: gw, source: src, dest: dst, metrics: m}
}

// Rederive recomputes every entry of an assignment against its current
// posted allocations and persists the entries that changed.
func (l *Ledger) Rederive(ctx context.Context, r store.Repo, a *model.HouseAssignment) (int, error) {
	lines, err := r.ListHouseAllocations(ctx, a.ProjectID, a.HouseID)
	if err != nil {
		return 0, err
	}
	entries, err := r.ListHarvests(ctx, a.ID)
	if err != nil {
		return 0, err
	}
	changed := Derive(entries, HouseCost(lines), a.ExpectedQty)
	for _, i := range changed {
		if err := r.UpdateHarvest(ctx, &entries[i]); err != nil {
			return 0, err
		}
	}
	l.metrics.Rederived(len(changed))
	if len(changed) > 0 {
		zap.L().Debug("harvest entries re-derived",
			zap.Int64("assignment_id", a.ID),
			zap.Int64("house_id", a.HouseID),
			zap.Int("changed", len(changed)),
		)
	}
	return len(changed), nil
}

// RederiveHouse re-derives the project's assignment for a house, if any.
func (l *Ledger) RederiveHouse(ctx context.Context, r store.Repo, projectID, houseID int64) (int, error) {
	a, err := r.FindAssignment(ctx, projectID, houseID)
	if err != nil || a == nil {
		return 0, err
	}
	return l.Rederive(ctx, r, a)
}

// Record creates a done entry, derives its cost, moves the harvested
// stock and books the harvest-derived cost.
func (l *Ledger) Record(ctx context.Context, rc model.RequestContext, r store.Repo, in RecordInput) (*model.HarvestEntry, error) {
	if err := farmerr.Check(in); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, farmerr.Invalid(farmerr.MsgQuantityPositive)
	}
	a, err := r.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return nil, err
	}
	if a.ProductID == 0 || a.ExpectedQty <= 0 {
		return nil, farmerr.Invalid(farmerr.MsgAssignmentIncomplete, a.ID)
	}

	e := &model.HarvestEntry{
		AssignmentID: a.ID,
		Date:         in.Date,
		Quantity:     in.Quantity,
		State:        model.HarvestDone,
		Notes:        in.Notes,
	}
	if err := r.CreateHarvest(ctx, e); err != nil {
		return nil, err
	}
	if _, err := l.Rederive(ctx, r, a); err != nil {
		return nil, err
	}
	if e, err = r.GetHarvest(ctx, e.ID); err != nil {
		return nil, err
	}
	if _, err := l.receive(ctx, rc, r, a, e); err != nil {
		return nil, err
	}
	if err := l.bookCost(ctx, rc, r, a, e); err != nil {
		return nil, err
	}
	return e, nil
}

// bookCost records the posted, harvest-derived cost of an entry. It is
// display history only and never counts as real house cost.
func (l *Ledger) bookCost(ctx context.Context, rc model.RequestContext, r store.Repo, a *model.HouseAssignment, e *model.HarvestEntry) error {
	value := e.Quantity * e.UnitCost()
	if value <= 0 {
		return nil
	}
	house, err := r.GetHouse(ctx, a.HouseID)
	if err != nil {
		return err
	}
	c := &model.Cost{
		ProjectID:      a.ProjectID,
		Type:           model.CostDirect,
		State:          model.CostPosted,
		Amount:         value,
		Date:           e.Date,
		Description:    fmt.Sprintf("Harvest %s (%.2f %s)", e.Name, e.Quantity, a.UOM),
		Scope:          model.Scope{HouseIDs: []int64{a.HouseID}},
		HarvestEntryID: e.ID,
	}
	if err := r.CreateCost(ctx, c); err != nil {
		return err
	}
	row := model.Allocation{
		CostID:          c.ID,
		ProjectID:       a.ProjectID,
		HouseID:         a.HouseID,
		HouseArea:       house.Area,
		AllocatedAmount: value,
		Percentage:      100,
	}
	if err := r.ReplaceAllocations(ctx, c.ID, []model.Allocation{row}); err != nil {
		return err
	}
	_, err = store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "harvest cost %s created: %.2f", c.Name, value)
	return err
}

// receive moves the entry's quantity into stock. Only store errors and
// unresolvable locations are returned; collaborator failures become notes.
func (l *Ledger) receive(ctx context.Context, rc model.RequestContext, r store.Repo, a *model.HouseAssignment, e *model.HarvestEntry) (model.Outcome, error) {
	inv := l.gw.Inventory()
	p, err := inv.Product(ctx, a.ProductID)
	if err != nil {
		return store.Warn(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "no stock move: %v", err)
	}
	if !p.Storable {
		return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "no stock move: product %s is not storable", p.Name)
	}
	src, err := inventory.ResolveLocation(ctx, inv, l.source)
	if err != nil {
		return model.Outcome{}, err
	}
	dst, err := inventory.ResolveLocation(ctx, inv, l.dest)
	if err != nil {
		return model.Outcome{}, err
	}

	res := l.gw.Move(ctx, inventory.TransferRequest{
		Origin: e.Name,
		Source: src.ID,
		Dest:   dst.ID,
		Lines:  []inventory.TransferLine{{ProductID: p.ID, Quantity: e.Quantity, UOM: p.UOM}},
	})
	if res.Transfer != nil {
		e.TransferID = res.Transfer.ID
		if err := r.UpdateHarvest(ctx, e); err != nil {
			return model.Outcome{}, err
		}
	}
	if !res.OK() {
		return store.Warn(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "stock move failed: %v", res.Err)
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(),
		"transfer %s created: %.2f %s from %s to %s (%s)", res.Transfer.ID, e.Quantity, p.UOM, src.ID, dst.ID, res.Transfer.State)
}

func (l *Ledger) load(ctx context.Context, r store.Repo, id int64) (*model.HarvestEntry, *model.HouseAssignment, error) {
	e, err := r.GetHarvest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	a, err := r.GetAssignment(ctx, e.AssignmentID)
	if err != nil {
		return nil, nil, err
	}
	return e, a, nil
}

// UpdateQuantity changes an entry's quantity, re-derives it and every
// later entry, and replaces its stock transfer. The old transfer must be
// cancelled first; if it cannot be, nothing changes.
func (l *Ledger) UpdateQuantity(ctx context.Context, rc model.RequestContext, r store.Repo, id int64, qty float64) (model.Outcome, error) {
	if qty <= 0 {
		return model.Outcome{}, farmerr.Invalid(farmerr.MsgQuantityPositive)
	}
	e, a, err := l.load(ctx, r, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.TransferID != "" {
		if err := l.gw.Cancel(ctx, e.TransferID, true); err != nil {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgCancelTransfer, e.TransferID)
		}
	}

	old := e.Quantity
	e.Quantity = qty
	e.TransferID = ""
	if err := r.UpdateHarvest(ctx, e); err != nil {
		return model.Outcome{}, err
	}
	if _, err := l.Rederive(ctx, r, a); err != nil {
		return model.Outcome{}, err
	}
	if e, err = r.GetHarvest(ctx, id); err != nil {
		return model.Outcome{}, err
	}
	if e.State == model.HarvestDone {
		if _, err := l.receive(ctx, rc, r, a, e); err != nil {
			return model.Outcome{}, err
		}
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "quantity changed from %.2f to %.2f", old, qty)
}

// Delete force-cancels the entry's transfer, cancels its harvest-derived
// cost, removes it and re-derives the remaining entries.
func (l *Ledger) Delete(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, a, err := l.load(ctx, r, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.TransferID != "" {
		if err := l.gw.Cancel(ctx, e.TransferID, true); err != nil {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgCancelTransfer, e.TransferID)
		}
	}

	costs, err := r.ListCosts(ctx, a.ProjectID)
	if err != nil {
		return model.Outcome{}, err
	}
	for i := range costs {
		c := &costs[i]
		if c.HarvestEntryID != e.ID || c.State == model.CostCancelled {
			continue
		}
		c.State = model.CostCancelled
		if err := r.UpdateCost(ctx, c); err != nil {
			return model.Outcome{}, err
		}
		if _, err := store.Note(ctx, r, model.EntityCost, c.ID, rc.Now(), "cancelled: harvest entry %s deleted", e.Name); err != nil {
			return model.Outcome{}, err
		}
	}

	if err := r.DeleteHarvest(ctx, e.ID); err != nil {
		return model.Outcome{}, err
	}
	if _, err := l.Rederive(ctx, r, a); err != nil {
		return model.Outcome{}, err
	}
	return store.Note(ctx, r, model.EntityProject, a.ProjectID, rc.Now(), "harvest entry %s deleted (%.2f)", e.Name, e.Quantity)
}

// Cancel reverses the entry's stock effect and marks it cancelled. The
// entry keeps its cost figures.
func (l *Ledger) Cancel(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, err := r.GetHarvest(ctx, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.State == model.HarvestCancelled {
		return model.Outcome{}, farmerr.Blocked(farmerr.MsgHarvestCancelled, e.Name)
	}
	if e.TransferID != "" {
		if err := l.gw.Cancel(ctx, e.TransferID, true); err != nil {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgCancelTransfer, e.TransferID)
		}
	}
	e.State = model.HarvestCancelled
	if err := r.UpdateHarvest(ctx, e); err != nil {
		return model.Outcome{}, err
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "harvest entry cancelled")
}

// Reinstate returns a cancelled entry to done with a fresh transfer.
func (l *Ledger) Reinstate(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, a, err := l.load(ctx, r, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.State != model.HarvestCancelled {
		return model.Outcome{}, farmerr.Blocked(farmerr.MsgHarvestNotCancelled, e.Name)
	}
	e.State = model.HarvestDone
	e.TransferID = ""
	if err := r.UpdateHarvest(ctx, e); err != nil {
		return model.Outcome{}, err
	}
	if _, err := l.receive(ctx, rc, r, a, e); err != nil {
		return model.Outcome{}, err
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "harvest entry returned to done")
}

// Recalculate re-derives the entry's assignment.
func (l *Ledger) Recalculate(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, a, err := l.load(ctx, r, id)
	if err != nil {
		return model.Outcome{}, err
	}
	n, err := l.Rederive(ctx, r, a)
	if err != nil {
		return model.Outcome{}, err
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "cost recalculated, %d entries changed", n)
}

// CreateTransfer creates the entry's stock transfer when it has none live.
func (l *Ledger) CreateTransfer(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, a, err := l.load(ctx, r, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.TransferID != "" {
		t, err := l.gw.Inventory().Transfer(ctx, e.TransferID)
		if err == nil && t.State != inventory.TransferCancelled {
			return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "transfer %s already exists", e.TransferID)
		}
	}
	return l.receive(ctx, rc, r, a, e)
}

// ValidateTransfer completes a pending transfer of the entry.
func (l *Ledger) ValidateTransfer(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error) {
	e, err := r.GetHarvest(ctx, id)
	if err != nil {
		return model.Outcome{}, err
	}
	if e.TransferID == "" {
		return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "no transfer to validate")
	}
	t, err := l.gw.Inventory().Transfer(ctx, e.TransferID)
	if err == nil && t.State == inventory.TransferDone {
		return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "transfer %s is already done", t.ID)
	}
	res := l.gw.Validate(ctx, e.TransferID)
	if !res.OK() {
		return store.Warn(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "could not validate transfer %s: %v", e.TransferID, res.Err)
	}
	return store.Note(ctx, r, model.EntityHarvest, e.ID, rc.Now(), "transfer %s validated", e.TransferID)
}

// Cumulatives returns the running aggregates of an assignment.
func (l *Ledger) Cumulatives(ctx context.Context, r store.Repo, assignmentID int64) ([]Cumulative, error) {
	a, err := r.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	entries, err := r.ListHarvests(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return Cumulatives(entries, a.ExpectedQty), nil
}

// Stats returns an assignment's read-only figures.
func (l *Ledger) Stats(ctx context.Context, r store.Repo, a *model.HouseAssignment) (Stats, error) {
	entries, err := r.ListHarvests(ctx, a.ID)
	if err != nil {
		return Stats{}, err
	}
	lines, err := r.ListHouseAllocations(ctx, a.ProjectID, a.HouseID)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(*a, entries, lines), nil
}
