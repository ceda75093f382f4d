package workflow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// checkCost validates a cost's own fields.
func checkCost(c *model.Cost) error {
	if !c.Type.IsValid() {
		return farmerr.Invalid(farmerr.MsgInvalidField, "type", string(c.Type))
	}
	if c.Amount <= 0 {
		return farmerr.Invalid(farmerr.MsgAmountPositive)
	}
	if strings.TrimSpace(c.PaymentAccount) == "" && c.OrderID == 0 && !c.HarvestDerived() {
		return farmerr.Invalid(farmerr.MsgPaymentAccountRequired)
	}
	if c.Type == model.CostDirect && c.Scope.IsEmpty() {
		return farmerr.Invalid(farmerr.MsgDirectScopeRequired)
	}
	if strings.TrimSpace(c.CostAccount) == "" && !c.HarvestDerived() {
		return farmerr.Invalid(farmerr.MsgCostAccountRequired)
	}
	return nil
}

// allocate regenerates the allocation rows of c.
func (s *Service) allocate(ctx context.Context, rc model.RequestContext, r store.Repo, p *model.Project, c *model.Cost) ([]model.Allocation, error) {
	engine, _, err := projectEngine(ctx, r, p)
	if err != nil {
		return nil, err
	}
	rows := engine.Allocate(*c)
	if err := r.ReplaceAllocations(ctx, c.ID, rows); err != nil {
		return nil, err
	}
	s.metrics.AllocationsWritten(len(rows))
	if len(rows) == 0 {
		if err := s.warnUnallocated(ctx, r, c, rc.Now()); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// warnUnallocated flags a cost whose scope reaches no assigned house.
func (s *Service) warnUnallocated(ctx context.Context, r store.Repo, c *model.Cost, at time.Time) error {
	zap.L().Warn("cost has no target houses",
		zap.Int64("cost_id", c.ID), zap.Int64("project_id", c.ProjectID), zap.Float64("amount", c.Amount))
	_, err := store.Warn(ctx, r, model.EntityCost, c.ID, at,
		"cost %s reaches no assigned house; %.2f is unallocated", c.Name, c.Amount)
	return err
}

// rederive refreshes the harvest ledger of every house a cost touches.
func (s *Service) rederive(ctx context.Context, r store.Repo, projectID int64, rows []model.Allocation) error {
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if seen[row.HouseID] {
			continue
		}
		seen[row.HouseID] = true
		if _, err := s.harvest.RederiveHouse(ctx, r, projectID, row.HouseID); err != nil {
			return err
		}
	}
	return nil
}

// CreateCost records a draft cost and allocates it.
func (s *Service) CreateCost(ctx context.Context, rc model.RequestContext, c *model.Cost) error {
	if err := checkCost(c); err != nil {
		return err
	}
	c.State = model.CostDraft
	c.JournalEntryID = ""
	if c.Date.IsZero() {
		c.Date = rc.Now()
	}
	return s.run(ctx, "create_cost", func(ctx context.Context, r store.Repo) error {
		p, err := r.GetProject(ctx, c.ProjectID)
		if err != nil {
			return err
		}
		if !p.Status.AcceptsCosts() {
			return farmerr.Blocked(farmerr.MsgProjectNotAcceptingCosts, p.ID, p.Status)
		}
		if err := r.CreateCost(ctx, c); err != nil {
			return err
		}
		_, err = s.allocate(ctx, rc, r, p, c)
		return err
	})
}

// GetCost loads a cost.
func (s *Service) GetCost(ctx context.Context, id int64) (*model.Cost, error) {
	var c *model.Cost
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		c, err = r.GetCost(ctx, id)
		return err
	})
	return c, err
}

// CostPatch holds the editable fields of a draft cost.
type CostPatch struct {
	Type           model.CostType `json:"type"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	Scope          model.Scope    `json:"scope"`
	PaymentAccount string         `json:"payment_account"`
	CostAccount    string         `json:"cost_account"`
}

// UpdateDraftCost edits a draft cost and reallocates it.
func (s *Service) UpdateDraftCost(ctx context.Context, rc model.RequestContext, id int64, patch CostPatch) (*model.Cost, error) {
	var c *model.Cost
	err := s.run(ctx, "update_cost", func(ctx context.Context, r store.Repo) error {
		var err error
		if c, err = r.GetCost(ctx, id); err != nil {
			return err
		}
		if c.State != model.CostDraft {
			return farmerr.Blocked(farmerr.MsgCostNotDraft, c.Name)
		}
		c.Type = patch.Type
		c.Amount = patch.Amount
		c.Description = patch.Description
		c.Scope = patch.Scope.Clone()
		c.PaymentAccount = patch.PaymentAccount
		c.CostAccount = patch.CostAccount
		if err := checkCost(c); err != nil {
			return err
		}
		p, err := r.GetProject(ctx, c.ProjectID)
		if err != nil {
			return err
		}
		if !p.Status.AcceptsCosts() {
			return farmerr.Blocked(farmerr.MsgProjectNotAcceptingCosts, p.ID, p.Status)
		}
		if err := r.UpdateCost(ctx, c); err != nil {
			return err
		}
		_, err = s.allocate(ctx, rc, r, p, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// PostCost posts a draft cost. Costs that do not come from an order get a
// journal entry and analytic lines for houses with an analytic account.
func (s *Service) PostCost(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.verb(ctx, "post_cost", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		c, err := r.GetCost(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		return s.postCost(ctx, rc, r, c)
	})
}

func (s *Service) postCost(ctx context.Context, rc model.RequestContext, r store.Repo, c *model.Cost) (model.Outcome, error) {
	if c.State != model.CostDraft {
		return model.Outcome{}, farmerr.Blocked(farmerr.MsgCostNotDraft, c.Name)
	}
	if err := checkCost(c); err != nil {
		return model.Outcome{}, err
	}
	rows, err := r.ListAllocations(ctx, c.ID)
	if err != nil {
		return model.Outcome{}, err
	}
	now := rc.Now()

	if c.OrderID == 0 && !c.HarvestDerived() {
		amount := ledger.Amount(c.Amount, s.cfg.Ledger.Precision)
		entry, err := s.journalEntry(ctx, c.Name, c.Date, ledger.Pair(c.CostAccount, c.PaymentAccount, amount, c.Name))
		if err != nil {
			return model.Outcome{}, err
		}
		c.JournalEntryID = entry.ID
		if err := s.postAnalytic(ctx, r, c, rows); err != nil {
			return model.Outcome{}, err
		}
	}

	c.State = model.CostPosted
	if err := r.UpdateCost(ctx, c); err != nil {
		return model.Outcome{}, err
	}
	if err := s.rederive(ctx, r, c.ProjectID, rows); err != nil {
		return model.Outcome{}, err
	}
	var out model.Outcome
	if c.JournalEntryID != "" {
		out, err = store.Note(ctx, r, model.EntityCost, c.ID, now, "cost %s posted with journal entry %s", c.Name, c.JournalEntryID)
	} else {
		out, err = store.Note(ctx, r, model.EntityCost, c.ID, now, "cost %s posted", c.Name)
	}
	if err != nil || len(rows) > 0 {
		return out, err
	}
	if err := s.warnUnallocated(ctx, r, c, now); err != nil {
		return model.Outcome{}, err
	}
	out.Warning = true
	return out, nil
}

func (s *Service) postAnalytic(ctx context.Context, r store.Repo, c *model.Cost, rows []model.Allocation) error {
	for _, row := range rows {
		h, err := r.GetHouse(ctx, row.HouseID)
		if err != nil {
			return err
		}
		if h.AnalyticAccount == "" {
			continue
		}
		label := c.Description
		if label == "" {
			label = c.Name
		}
		if _, err := s.ledger.PostAnalytic(ctx, ledger.AnalyticLine{
			Account: h.AnalyticAccount,
			Ref:     c.Name,
			Name:    label,
			Amount:  ledger.Amount(-row.AllocatedAmount, s.cfg.Ledger.Precision),
			Date:    c.Date,
		}); err != nil {
			return err
		}
	}
	return nil
}

// CancelCost cancels a cost, reverses its journal entry and analytic
// lines, and re-derives the harvest ledger of its houses.
func (s *Service) CancelCost(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.verb(ctx, "cancel_cost", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		c, err := r.GetCost(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		return s.cancelCost(ctx, rc, r, c)
	})
}

func (s *Service) cancelCost(ctx context.Context, rc model.RequestContext, r store.Repo, c *model.Cost) (model.Outcome, error) {
	if c.State == model.CostCancelled {
		return model.Outcome{}, farmerr.Blocked(farmerr.MsgCostAlreadyCancelled, c.Name)
	}
	now := rc.Now()
	if c.JournalEntryID != "" {
		if _, err := s.ledger.Reverse(ctx, c.JournalEntryID, now); err != nil {
			return model.Outcome{}, err
		}
	}
	if _, err := s.ledger.CancelAnalytic(ctx, c.Name); err != nil {
		return model.Outcome{}, err
	}
	c.State = model.CostCancelled
	if err := r.UpdateCost(ctx, c); err != nil {
		return model.Outcome{}, err
	}
	rows, err := r.ListAllocations(ctx, c.ID)
	if err != nil {
		return model.Outcome{}, err
	}
	if err := s.rederive(ctx, r, c.ProjectID, rows); err != nil {
		return model.Outcome{}, err
	}
	return store.Note(ctx, r, model.EntityCost, c.ID, now, "cost %s cancelled", c.Name)
}

// ResetCostToDraft reopens a cancelled cost and regenerates its allocations.
func (s *Service) ResetCostToDraft(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.verb(ctx, "reset_cost", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		c, err := r.GetCost(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		if c.State != model.CostCancelled {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgCostResetFromCancelled)
		}
		p, err := r.GetProject(ctx, c.ProjectID)
		if err != nil {
			return model.Outcome{}, err
		}
		if !p.Status.AcceptsCosts() {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgProjectNotAcceptingCosts, p.ID, p.Status)
		}
		c.State = model.CostDraft
		c.JournalEntryID = ""
		if err := r.UpdateCost(ctx, c); err != nil {
			return model.Outcome{}, err
		}
		if _, err := s.allocate(ctx, rc, r, p, c); err != nil {
			return model.Outcome{}, err
		}
		return store.Note(ctx, r, model.EntityCost, c.ID, rc.Now(), "cost %s reset to draft", c.Name)
	})
}

// DeleteCost always fails: costs are cancelled, never removed.
func (s *Service) DeleteCost(_ context.Context, _ int64) error {
	return farmerr.Forbidden(farmerr.MsgCostDelete)
}

// CostAllocations lists the allocation rows of a cost.
func (s *Service) CostAllocations(ctx context.Context, costID int64) ([]model.Allocation, error) {
	var rows []model.Allocation
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		if _, err := r.GetCost(ctx, costID); err != nil {
			return err
		}
		var err error
		rows, err = r.ListAllocations(ctx, costID)
		return err
	})
	return rows, err
}

// ProjectCosts lists a project's costs.
func (s *Service) ProjectCosts(ctx context.Context, projectID int64) ([]model.Cost, error) {
	var costs []model.Cost
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		costs, err = r.ListCosts(ctx, projectID)
		return err
	})
	return costs, err
}
