package workflow

import (
	"context"

	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// RecordHarvest records a harvest entry and derives its cost. A missing
// date defaults to today.
func (s *Service) RecordHarvest(ctx context.Context, rc model.RequestContext, in harvest.RecordInput) (*model.HarvestEntry, error) {
	if in.Date.IsZero() {
		in.Date = rc.Now()
	}
	var e *model.HarvestEntry
	err := s.run(ctx, "record_harvest", func(ctx context.Context, r store.Repo) error {
		var err error
		e, err = s.harvest.Record(ctx, rc, r, in)
		return err
	})
	return e, err
}

// GetHarvest loads a harvest entry.
func (s *Service) GetHarvest(ctx context.Context, id int64) (*model.HarvestEntry, error) {
	var e *model.HarvestEntry
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		e, err = r.GetHarvest(ctx, id)
		return err
	})
	return e, err
}

type harvestVerb func(ctx context.Context, rc model.RequestContext, r store.Repo, id int64) (model.Outcome, error)

func (s *Service) harvestVerb(ctx context.Context, rc model.RequestContext, op string, id int64, fn harvestVerb) (model.Outcome, error) {
	return s.verb(ctx, op, func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		return fn(ctx, rc, r, id)
	})
}

// UpdateHarvestQuantity changes an entry's quantity and cascades.
func (s *Service) UpdateHarvestQuantity(ctx context.Context, rc model.RequestContext, id int64, qty float64) (model.Outcome, error) {
	return s.verb(ctx, "update_harvest", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		return s.harvest.UpdateQuantity(ctx, rc, r, id, qty)
	})
}

// DeleteHarvest removes an entry after reversing its stock move.
func (s *Service) DeleteHarvest(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "delete_harvest", id, s.harvest.Delete)
}

// CancelHarvest cancels an entry.
func (s *Service) CancelHarvest(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "cancel_harvest", id, s.harvest.Cancel)
}

// ReinstateHarvest returns a cancelled entry to done.
func (s *Service) ReinstateHarvest(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "reinstate_harvest", id, s.harvest.Reinstate)
}

// RecalculateHarvest re-derives the entry's assignment.
func (s *Service) RecalculateHarvest(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "recalculate_harvest", id, s.harvest.Recalculate)
}

// CreateHarvestTransfer creates a missing stock transfer for an entry.
func (s *Service) CreateHarvestTransfer(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "create_harvest_transfer", id, s.harvest.CreateTransfer)
}

// ValidateHarvestTransfer validates an entry's pending transfer.
func (s *Service) ValidateHarvestTransfer(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.harvestVerb(ctx, rc, "validate_harvest_transfer", id, s.harvest.ValidateTransfer)
}

// HarvestCumulatives returns the running totals of an assignment.
func (s *Service) HarvestCumulatives(ctx context.Context, assignmentID int64) ([]harvest.Cumulative, error) {
	var out []harvest.Cumulative
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		out, err = s.harvest.Cumulatives(ctx, r, assignmentID)
		return err
	})
	return out, err
}

// Notes lists the notes of a record.
func (s *Service) Notes(ctx context.Context, entity string, id int64) ([]model.Note, error) {
	var out []model.Note
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		out, err = r.ListNotes(ctx, entity, id)
		return err
	})
	return out, err
}
