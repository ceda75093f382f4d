// Package avco sets a produce item's average cost from the real cost of
// the houses that grew it, and undoes that when asked.
package avco

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// Service recomputes and reverts AVCO for projects.
type Service struct {
	inv       inventory.Inventory
	ledger    ledger.Ledger
	precision int32
	journal   string
}

// NewService builds a Service posting valuation adjustments to l.
func NewService(inv inventory.Inventory, l ledger.Ledger, cfg config.LedgerConfig) *Service {
	return &Service{inv: inv, ledger: l, precision: cfg.Precision, journal: cfg.Journal}
}

// Basis is the input of one house's recompute.
type Basis struct {
	TotalAllocated float64
	TotalQuantity  float64
	EntryIDs       []int64
	TransferIDs    []string
	CostAccount    string
}

// UnitCost is the target average cost, or false when the basis is empty.
func (b Basis) UnitCost() (float64, bool) {
	if b.TotalAllocated <= 0 || b.TotalQuantity <= 0 {
		return 0, false
	}
	return b.TotalAllocated / b.TotalQuantity, true
}

// basis gathers real posted cost and received harvest quantity for one
// assignment. Only done entries whose receipt completed count.
func (s *Service) basis(ctx context.Context, r store.Repo, a model.HouseAssignment) (Basis, error) {
	var b Basis
	lines, err := r.ListHouseAllocations(ctx, a.ProjectID, a.HouseID)
	if err != nil {
		return b, err
	}
	b.TotalAllocated = harvest.HouseCost(lines)
	for _, l := range lines {
		if l.CountsAsRealCost() && l.CostAccount != "" {
			b.CostAccount = l.CostAccount
			break
		}
	}

	entries, err := r.ListHarvests(ctx, a.ID)
	if err != nil {
		return b, err
	}
	for _, e := range entries {
		if e.State != model.HarvestDone || e.TransferID == "" {
			continue
		}
		t, err := s.inv.Transfer(ctx, e.TransferID)
		if err != nil || t.State != inventory.TransferDone {
			continue
		}
		b.TotalQuantity += e.Quantity
		b.EntryIDs = append(b.EntryIDs, e.ID)
		b.TransferIDs = append(b.TransferIDs, e.TransferID)
	}
	return b, nil
}

// Recompute applies AVCO for every assignment of the project with a
// product and a non-empty basis. Assignments stay locked until the
// transaction ends.
func (s *Service) Recompute(ctx context.Context, rc model.RequestContext, r store.Repo, projectID int64) ([]model.AVCOAudit, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := r.LockAssignments(ctx, projectID); err != nil {
		return nil, err
	}
	assignments, err := r.ListAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	type plan struct {
		a      model.HouseAssignment
		b      Basis
		target float64
	}
	var plans []plan
	for _, a := range assignments {
		if a.ProductID == 0 {
			continue
		}
		b, err := s.basis(ctx, r, a)
		if err != nil {
			return nil, err
		}
		if target, ok := b.UnitCost(); ok {
			plans = append(plans, plan{a: a, b: b, target: target})
		}
	}

	// Inventory and ledger changes are not part of the store transaction,
	// so anything applied is undone when a later step fails.
	var applied []*model.AVCOAudit
	fail := func(err error) ([]model.AVCOAudit, error) {
		s.undo(ctx, rc, applied)
		return nil, err
	}
	audits := make([]model.AVCOAudit, 0, len(plans))
	for _, pl := range plans {
		audit, err := s.apply(ctx, rc, pl.a, pl.b, pl.target)
		if audit != nil {
			applied = append(applied, audit)
		}
		if err != nil {
			return fail(err)
		}
		if err := r.CreateAVCOAudit(ctx, audit); err != nil {
			return fail(err)
		}
		if _, err := store.Note(ctx, r, model.EntityProject, projectID, rc.Now(),
			"AVCO for product %d set to %.4f from house %d (%.2f / %.2f)",
			pl.a.ProductID, pl.target, pl.a.HouseID, pl.b.TotalAllocated, pl.b.TotalQuantity); err != nil {
			return fail(err)
		}
		audits = append(audits, *audit)
	}

	p.AVCOUpdated = true
	if err := r.UpdateProject(ctx, p); err != nil {
		return fail(err)
	}
	zap.L().Info("avco recomputed", zap.Int64("project_id", projectID), zap.Int("houses", len(audits)))
	return audits, nil
}

// apply rewrites the product price and open layers and posts the
// valuation difference. Once the price has changed the audit is returned
// even on error, holding what was applied so far.
func (s *Service) apply(ctx context.Context, rc model.RequestContext, a model.HouseAssignment, b Basis, target float64) (*model.AVCOAudit, error) {
	product, err := s.inv.Product(ctx, a.ProductID)
	if err != nil {
		return nil, eris.Wrapf(err, "avco: product %d", a.ProductID)
	}
	layers, err := s.inv.OpenLayers(ctx, a.ProductID)
	if err != nil {
		return nil, eris.Wrapf(err, "avco: layers of product %d", a.ProductID)
	}
	audit := &model.AVCOAudit{
		ProjectID:       a.ProjectID,
		HouseID:         a.HouseID,
		ProductID:       a.ProductID,
		TargetUnitCost:  target,
		TotalAllocated:  b.TotalAllocated,
		TotalQuantity:   b.TotalQuantity,
		PreviousPrice:   product.StandardPrice,
		HarvestEntryIDs: b.EntryIDs,
		TransferIDs:     b.TransferIDs,
		CreatedAt:       rc.Now(),
	}
	if err := s.inv.SetStandardPrice(ctx, a.ProductID, target); err != nil {
		return nil, eris.Wrapf(err, "avco: set price of product %d", a.ProductID)
	}

	var delta float64
	for _, l := range layers {
		value := l.RemainingQty * target
		if err := s.inv.SetLayerValue(ctx, l.ID, value); err != nil {
			return audit, eris.Wrapf(err, "avco: revalue layer %d", l.ID)
		}
		audit.Layers = append(audit.Layers, model.LayerSnapshot{LayerID: l.ID, PreviousValue: l.RemainingValue})
		delta += value - l.RemainingValue
	}

	id, err := s.postAdjustment(ctx, rc.Now(), product, b.CostAccount, delta)
	if err != nil {
		return audit, err
	}
	audit.JournalEntryID = id
	return audit, nil
}

// undo rolls back applied audits, newest first. It is best effort: the
// caller is already failing, so errors are only logged.
func (s *Service) undo(ctx context.Context, rc model.RequestContext, applied []*model.AVCOAudit) {
	for _, audit := range slices.Backward(applied) {
		for _, snap := range audit.Layers {
			if err := s.inv.SetLayerValue(ctx, snap.LayerID, snap.PreviousValue); err != nil {
				zap.L().Warn("avco: undo layer", zap.Int64("layer_id", snap.LayerID), zap.Error(err))
			}
		}
		if err := s.inv.SetStandardPrice(ctx, audit.ProductID, audit.PreviousPrice); err != nil {
			zap.L().Warn("avco: undo price", zap.Int64("product_id", audit.ProductID), zap.Error(err))
		}
		if audit.JournalEntryID != "" {
			if _, err := s.ledger.Reverse(ctx, audit.JournalEntryID, rc.Now()); err != nil {
				zap.L().Warn("avco: undo adjustment", zap.String("entry_id", audit.JournalEntryID), zap.Error(err))
			}
		}
	}
}

// postAdjustment books a revaluation: an increase debits the valuation
// account against the house cost account, a decrease the reverse.
func (s *Service) postAdjustment(ctx context.Context, at time.Time, p *inventory.Product, costAccount string, delta float64) (string, error) {
	amount := ledger.Amount(math.Abs(delta), s.precision)
	if amount.IsZero() || p.ValuationAccount == "" || costAccount == "" {
		return "", nil
	}
	debit, credit := p.ValuationAccount, costAccount
	if delta < 0 {
		debit, credit = credit, debit
	}
	e, err := s.ledger.Post(ctx, ledger.Entry{
		Journal: s.journal,
		Ref:     "AVCO " + p.Name,
		Date:    at,
		Lines:   ledger.Pair(debit, credit, amount, "AVCO revaluation"),
	})
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// Revert undoes every audit of the project, newest first, then prices each
// touched product from its remaining layers.
func (s *Service) Revert(ctx context.Context, rc model.RequestContext, r store.Repo, projectID int64) (int, error) {
	p, err := r.GetProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if err := r.LockAssignments(ctx, projectID); err != nil {
		return 0, err
	}
	audits, err := r.ListAVCOAudits(ctx, projectID)
	if err != nil {
		return 0, err
	}

	var products []int64
	for _, audit := range slices.Backward(audits) {
		for _, snap := range audit.Layers {
			if err := s.inv.SetLayerValue(ctx, snap.LayerID, snap.PreviousValue); err != nil {
				return 0, eris.Wrapf(err, "avco: restore layer %d", snap.LayerID)
			}
		}
		if audit.JournalEntryID != "" {
			if _, err := s.ledger.Reverse(ctx, audit.JournalEntryID, rc.Now()); err != nil {
				return 0, err
			}
		}
		if err := r.DeleteAVCOAudit(ctx, audit.ID); err != nil {
			return 0, err
		}
		if !slices.Contains(products, audit.ProductID) {
			products = append(products, audit.ProductID)
		}
	}

	for _, id := range products {
		price, err := s.layerPrice(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := s.inv.SetStandardPrice(ctx, id, price); err != nil {
			return 0, eris.Wrapf(err, "avco: reset price of product %d", id)
		}
	}

	p.AVCOUpdated = false
	if err := r.UpdateProject(ctx, p); err != nil {
		return 0, err
	}
	if len(audits) > 0 {
		if _, err := store.Note(ctx, r, model.EntityProject, projectID, rc.Now(), "AVCO reverted for %d houses", len(audits)); err != nil {
			return 0, err
		}
	}
	return len(audits), nil
}

// layerPrice is Σvalue / Σqty over open layers, or 0 with no stock left.
func (s *Service) layerPrice(ctx context.Context, productID int64) (float64, error) {
	layers, err := s.inv.OpenLayers(ctx, productID)
	if err != nil {
		return 0, eris.Wrapf(err, "avco: layers of product %d", productID)
	}
	var qty, value float64
	for _, l := range layers {
		qty += l.RemainingQty
		value += l.RemainingValue
	}
	if qty <= 0 {
		return 0, nil
	}
	return value / qty, nil
}

// Update reverts then recomputes, in that order.
func (s *Service) Update(ctx context.Context, rc model.RequestContext, r store.Repo, projectID int64) ([]model.AVCOAudit, error) {
	if _, err := s.Revert(ctx, rc, r, projectID); err != nil {
		return nil, err
	}
	return s.Recompute(ctx, rc, r, projectID)
}
