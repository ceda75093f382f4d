package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/inventory"
	"github.com/sells-group/farm-ledger/internal/ledger"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// CreateOrder validates and stores a draft product order. Line prices are
// taken from the product's standard price.
func (s *Service) CreateOrder(ctx context.Context, rc model.RequestContext, o *model.ProductOrder) error {
	inv := s.gw.Inventory()
	for i := range o.Lines {
		l := &o.Lines[i]
		if err := farmerr.Check(l); err != nil {
			return err
		}
		p, err := inv.Product(ctx, l.ProductID)
		if err != nil {
			return farmerr.Invalid(farmerr.MsgInvalidField, "product_id", strconv.FormatInt(l.ProductID, 10))
		}
		l.Justification = strings.TrimSpace(l.Justification)
		if utf8.RuneCountInString(l.Justification) < s.cfg.Orders.JustificationMinLen {
			return farmerr.Invalid(farmerr.MsgJustificationShort, s.cfg.Orders.JustificationMinLen)
		}
		l.UnitPrice = p.StandardPrice
	}
	o.State = model.OrderDraft
	o.TransferID = ""
	o.JournalEntryID = ""
	if o.RequestDate.IsZero() {
		o.RequestDate = rc.Now()
	}
	if o.RequesterID == "" {
		o.RequesterID = rc.UserID
	}
	return s.run(ctx, "create_order", func(ctx context.Context, r store.Repo) error {
		p, err := r.GetProject(ctx, o.ProjectID)
		if err != nil {
			return err
		}
		if p.Status != model.ProjectInProgress {
			return farmerr.Blocked(farmerr.MsgOrderProjectState)
		}
		return r.CreateOrder(ctx, o)
	})
}

// GetOrder loads an order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.ProductOrder, error) {
	var o *model.ProductOrder
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		o, err = r.GetOrder(ctx, id)
		return err
	})
	return o, err
}

// orderStep loads an order in the expected state, applies fn and persists
// the result.
func (s *Service) orderStep(ctx context.Context, rc model.RequestContext, verb string, id int64,
	from func(model.OrderState) bool,
	fn func(ctx context.Context, r store.Repo, o *model.ProductOrder) (string, error),
) (model.Outcome, error) {
	return s.verb(ctx, verb+"_order", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		o, err := r.GetOrder(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		if !from(o.State) {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgOrderTransition, verb, o.State)
		}
		msg, err := fn(ctx, r, o)
		if err != nil {
			return model.Outcome{}, err
		}
		if err := r.UpdateOrder(ctx, o); err != nil {
			return model.Outcome{}, err
		}
		return store.Note(ctx, r, model.EntityOrder, o.ID, rc.Now(), "%s", msg)
	})
}

func inState(states ...model.OrderState) func(model.OrderState) bool {
	return func(s model.OrderState) bool {
		for _, want := range states {
			if s == want {
				return true
			}
		}
		return false
	}
}

// SubmitOrder sends a draft order for approval. Direct orders skip the
// owner.
func (s *Service) SubmitOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "submit", id, inState(model.OrderDraft),
		func(_ context.Context, _ store.Repo, o *model.ProductOrder) (string, error) {
			if len(o.Lines) == 0 {
				return "", farmerr.Blocked(farmerr.MsgOrderNoLines)
			}
			if o.Scope.IsEmpty() {
				return "", farmerr.Blocked(farmerr.MsgOrderNoTargets)
			}
			if o.IsDirect {
				o.State = model.OrderInventoryApproval
				return "direct order submitted, awaiting inventory approval", nil
			}
			o.State = model.OrderOwnerApproval
			return "order submitted, awaiting owner approval", nil
		})
}

// OwnerApproveOrder moves an order on to inventory approval.
func (s *Service) OwnerApproveOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "owner_approve", id, inState(model.OrderOwnerApproval),
		func(_ context.Context, _ store.Repo, o *model.ProductOrder) (string, error) {
			o.State = model.OrderInventoryApproval
			return "owner approved, awaiting inventory approval", nil
		})
}

// InventoryApproveOrder checks availability and moves the ordered stock to
// the order destination. A failed move is noted and does not block.
func (s *Service) InventoryApproveOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "inventory_approve", id, inState(model.OrderInventoryApproval),
		func(ctx context.Context, r store.Repo, o *model.ProductOrder) (string, error) {
			inv := s.gw.Inventory()
			lines := make([]inventory.TransferLine, 0, len(o.Lines))
			for _, l := range o.Lines {
				p, err := inv.Product(ctx, l.ProductID)
				if err != nil {
					return "", farmerr.Invalid(farmerr.MsgInvalidField, "product_id", strconv.FormatInt(l.ProductID, 10))
				}
				avail, err := inv.Available(ctx, l.ProductID)
				if err != nil {
					return "", err
				}
				if avail < l.Quantity {
					return "", farmerr.Blocked(farmerr.MsgInsufficientStock, p.Name, l.Quantity, avail)
				}
				lines = append(lines, inventory.TransferLine{ProductID: p.ID, Quantity: l.Quantity, UOM: p.UOM})
			}

			o.State = model.OrderAccountingApproval
			_, _, srcRoute, dstRoute := inventory.Routes(s.cfg.Inventory)
			src, err := inventory.ResolveLocation(ctx, inv, srcRoute)
			if err != nil {
				return "", err
			}
			dst, err := inventory.ResolveLocation(ctx, inv, dstRoute)
			if err != nil {
				return "", err
			}
			res := s.gw.Move(ctx, inventory.TransferRequest{Origin: o.Name, Source: src.ID, Dest: dst.ID, Lines: lines})
			if res.Transfer != nil {
				o.TransferID = res.Transfer.ID
			}
			if !res.OK() {
				if _, err := store.Warn(ctx, r, model.EntityOrder, o.ID, rc.Now(), "stock move failed: %v", res.Err); err != nil {
					return "", err
				}
				return "inventory approved without stock move, awaiting accounting approval", nil
			}
			return fmt.Sprintf("inventory approved with transfer %s, awaiting accounting approval", res.Transfer.ID), nil
		})
}

// LinkOrderJournal attaches a manually posted journal entry to a direct
// order.
func (s *Service) LinkOrderJournal(ctx context.Context, rc model.RequestContext, id int64, entryID string) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "link_journal", id, func(st model.OrderState) bool {
		return st != model.OrderDone && st != model.OrderCancelled
	}, func(ctx context.Context, _ store.Repo, o *model.ProductOrder) (string, error) {
		if !o.IsDirect {
			return "", farmerr.Blocked(farmerr.MsgOrderTransition, "link_journal", o.State)
		}
		if _, err := s.ledger.Entry(ctx, entryID); err != nil {
			return "", farmerr.Invalid(farmerr.MsgInvalidField, "journal_entry_id", entryID)
		}
		o.JournalEntryID = entryID
		return fmt.Sprintf("journal entry %s linked", entryID), nil
	})
}

// AccountingApproveOrder books the order and creates its farm costs.
// Direct orders use their linked journal entry; others post one.
func (s *Service) AccountingApproveOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "accounting_approve", id, inState(model.OrderAccountingApproval),
		func(ctx context.Context, r store.Repo, o *model.ProductOrder) (string, error) {
			if o.IsDirect {
				if o.JournalEntryID == "" {
					return "", farmerr.Blocked(farmerr.MsgDirectOrderJournal)
				}
			} else {
				entry, err := s.orderJournal(ctx, rc, o)
				if err != nil {
					return "", err
				}
				o.JournalEntryID = entry.ID
			}
			n, err := s.orderCosts(ctx, rc, r, o)
			if err != nil {
				return "", err
			}
			o.State = model.OrderDone
			return fmt.Sprintf("accounting approved, %d costs created", n), nil
		})
}

// orderJournal posts debit order-source / credit order-destination for
// each line.
func (s *Service) orderJournal(ctx context.Context, rc model.RequestContext, o *model.ProductOrder) (*ledger.Entry, error) {
	inv := s.gw.Inventory()
	var lines []ledger.Line
	for _, l := range o.Lines {
		p, err := inv.Product(ctx, l.ProductID)
		if err != nil {
			return nil, farmerr.Invalid(farmerr.MsgInvalidField, "product_id", strconv.FormatInt(l.ProductID, 10))
		}
		if p.OrderSourceAccount == "" || p.OrderDestAccount == "" {
			return nil, farmerr.Blocked(farmerr.MsgOrderAccounts, p.Name)
		}
		amount := ledger.Amount(l.Subtotal(), s.cfg.Ledger.Precision)
		if amount.IsZero() {
			continue
		}
		label := fmt.Sprintf("%s - %s", o.Name, p.Name)
		lines = append(lines, ledger.Pair(p.OrderSourceAccount, p.OrderDestAccount, amount, label)...)
	}
	return s.journalEntry(ctx, o.Name, rc.Now(), lines)
}

// orderCosts creates and posts one direct cost per distinct order-source
// account, scoped to the order's target houses.
func (s *Service) orderCosts(ctx context.Context, rc model.RequestContext, r store.Repo, o *model.ProductOrder) (int, error) {
	p, err := r.GetProject(ctx, o.ProjectID)
	if err != nil {
		return 0, err
	}
	now := rc.Now()
	if p.Status != model.ProjectInProgress {
		_, err := store.Note(ctx, r, model.EntityOrder, o.ID, now, "project is not in progress, no costs created")
		return 0, err
	}
	_, ix, err := projectEngine(ctx, r, p)
	if err != nil {
		return 0, err
	}
	targets := ix.Resolve(o.Scope)
	if len(targets) == 0 {
		return 0, nil
	}
	houseIDs := make([]int64, len(targets))
	for i, h := range targets {
		houseIDs[i] = h.ID
	}

	inv := s.gw.Inventory()
	var accounts []string
	amounts := map[string]float64{}
	for _, l := range o.Lines {
		prod, err := inv.Product(ctx, l.ProductID)
		if err != nil || prod.OrderSourceAccount == "" {
			continue
		}
		if _, ok := amounts[prod.OrderSourceAccount]; !ok {
			accounts = append(accounts, prod.OrderSourceAccount)
		}
		amounts[prod.OrderSourceAccount] += l.Subtotal()
	}
	if len(accounts) == 0 {
		_, err := store.Note(ctx, r, model.EntityOrder, o.ID, now, "no source accounts on the ordered products, no costs created")
		return 0, err
	}

	created := 0
	for _, acct := range accounts {
		if amounts[acct] <= 0 {
			continue
		}
		c := &model.Cost{
			ProjectID:   p.ID,
			Type:        model.CostDirect,
			State:       model.CostDraft,
			Amount:      amounts[acct],
			Date:        now,
			Description: fmt.Sprintf("Product order %s - account %s", o.Name, acct),
			Scope:       model.Scope{HouseIDs: houseIDs},
			CostAccount: acct,
			OrderID:     o.ID,
		}
		if err := r.CreateCost(ctx, c); err != nil {
			return 0, err
		}
		if _, err := s.allocate(ctx, rc, r, p, c); err != nil {
			return 0, err
		}
		if _, err := s.postCost(ctx, rc, r, c); err != nil {
			return 0, err
		}
		created++
	}
	zap.L().Info("order costs created", zap.Int64("order_id", o.ID), zap.Int("costs", created))
	return created, nil
}

// CancelOrder cancels an order that is not done and force-cancels its
// transfer. A transfer that cannot be cancelled is noted.
func (s *Service) CancelOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "cancel", id, inState(model.OrderDraft, model.OrderOwnerApproval, model.OrderInventoryApproval, model.OrderAccountingApproval),
		func(ctx context.Context, r store.Repo, o *model.ProductOrder) (string, error) {
			if o.TransferID != "" {
				if err := s.gw.Cancel(ctx, o.TransferID, true); err != nil {
					if _, err := store.Warn(ctx, r, model.EntityOrder, o.ID, rc.Now(), "could not cancel transfer %s: %v", o.TransferID, err); err != nil {
						return "", err
					}
				}
			}
			o.State = model.OrderCancelled
			return "order cancelled", nil
		})
}

// ResetOrder returns a cancelled order to draft.
func (s *Service) ResetOrder(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.orderStep(ctx, rc, "reset", id, inState(model.OrderCancelled),
		func(_ context.Context, _ store.Repo, o *model.ProductOrder) (string, error) {
			o.State = model.OrderDraft
			o.TransferID = ""
			return "order reset to draft", nil
		})
}
