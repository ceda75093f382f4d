package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/farm-ledger/internal/allocation"
	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/hierarchy"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// CreateProject stores a draft project on an existing farm.
func (s *Service) CreateProject(ctx context.Context, rc model.RequestContext, p *model.Project) error {
	if err := farmerr.Check(p); err != nil {
		return err
	}
	p.Status = model.ProjectDraft
	p.CreatedAt = rc.Now()
	return s.run(ctx, "create_project", func(ctx context.Context, r store.Repo) error {
		if _, err := r.LoadFarmTree(ctx, p.FarmID); err != nil {
			return err
		}
		return r.CreateProject(ctx, p)
	})
}

// GetProject loads a project.
func (s *Service) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p *model.Project
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		p, err = r.GetProject(ctx, id)
		return err
	})
	return p, err
}

// statusMove describes one project transition.
type statusMove struct {
	verb       string
	from       func(model.ProjectStatus) bool
	to         model.ProjectStatus
	needReason bool
	apply      func(p *model.Project, now time.Time)
}

func (s *Service) moveProject(ctx context.Context, rc model.RequestContext, id int64, reason string, m statusMove,
	after func(ctx context.Context, r store.Repo, p *model.Project) error,
) (model.Outcome, error) {
	reason = strings.TrimSpace(reason)
	if m.needReason && reason == "" {
		return model.Outcome{}, farmerr.Invalid(farmerr.MsgReasonRequired)
	}
	return s.verb(ctx, m.verb+"_project", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		if !m.from(p.Status) {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgStatusTransition, m.verb, p.Status)
		}
		now := rc.Now()
		old := p.Status
		p.Status = m.to
		if m.apply != nil {
			m.apply(p, now)
		}
		if err := r.UpdateProject(ctx, p); err != nil {
			return model.Outcome{}, err
		}
		change := &model.StatusChange{ProjectID: p.ID, OldStatus: old, NewStatus: m.to, Reason: reason, UserID: rc.UserID, ChangedAt: now}
		if err := r.AppendStatusChange(ctx, change); err != nil {
			return model.Outcome{}, err
		}
		if after != nil {
			if err := after(ctx, r, p); err != nil {
				return model.Outcome{}, err
			}
		}
		return store.Note(ctx, r, model.EntityProject, p.ID, now, "status changed from %s to %s", old, m.to)
	})
}

func is(statuses ...model.ProjectStatus) func(model.ProjectStatus) bool {
	return func(s model.ProjectStatus) bool {
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
}

func not(statuses ...model.ProjectStatus) func(model.ProjectStatus) bool {
	match := is(statuses...)
	return func(s model.ProjectStatus) bool { return !match(s) }
}

// StartProject moves a draft project into progress.
func (s *Service) StartProject(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, "", statusMove{
		verb: "start", from: is(model.ProjectDraft), to: model.ProjectInProgress,
		apply: func(p *model.Project, now time.Time) { p.ActualStart = &now },
	}, nil)
}

// PauseProject pauses a running project.
func (s *Service) PauseProject(ctx context.Context, rc model.RequestContext, id int64, reason string) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, reason, statusMove{
		verb: "pause", from: is(model.ProjectInProgress), to: model.ProjectPaused, needReason: true,
		apply: func(p *model.Project, now time.Time) { p.PausedDate = &now },
	}, nil)
}

// ResumeProject resumes a paused project and books the paused days.
func (s *Service) ResumeProject(ctx context.Context, rc model.RequestContext, id int64, reason string) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, reason, statusMove{
		verb: "resume", from: is(model.ProjectPaused), to: model.ProjectInProgress, needReason: true,
		apply: func(p *model.Project, now time.Time) {
			if p.PausedDate != nil {
				p.TotalPausedDays += daysBetween(*p.PausedDate, now)
			}
			p.PausedDate = nil
		},
	}, nil)
}

// CompleteProject finishes a running project and recomputes AVCO.
func (s *Service) CompleteProject(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, "", statusMove{
		verb: "complete", from: is(model.ProjectInProgress), to: model.ProjectCompleted,
		apply: func(p *model.Project, now time.Time) { p.ActualFinish = &now },
	}, func(ctx context.Context, r store.Repo, p *model.Project) error {
		_, err := s.avco.Recompute(ctx, rc, r, p.ID)
		return err
	})
}

// CancelProject cancels a project that is neither completed nor cancelled.
func (s *Service) CancelProject(ctx context.Context, rc model.RequestContext, id int64, reason string) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, reason, statusMove{
		verb: "cancel", from: not(model.ProjectCompleted, model.ProjectCancelled), to: model.ProjectCancelled, needReason: true,
	}, nil)
}

// ResetProject returns a project that is not completed to draft.
func (s *Service) ResetProject(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.moveProject(ctx, rc, id, "", statusMove{
		verb: "reset", from: not(model.ProjectCompleted), to: model.ProjectDraft,
		apply: func(p *model.Project, _ time.Time) {
			p.ActualStart = nil
			p.PausedDate = nil
		},
	}, nil)
}

// UpdateAVCO reverts then recomputes a project's AVCO.
func (s *Service) UpdateAVCO(ctx context.Context, rc model.RequestContext, id int64) (model.Outcome, error) {
	return s.verb(ctx, "update_avco", func(ctx context.Context, r store.Repo) (model.Outcome, error) {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return model.Outcome{}, err
		}
		if p.Status != model.ProjectInProgress && p.Status != model.ProjectCompleted {
			return model.Outcome{}, farmerr.Blocked(farmerr.MsgAVCONotAllowed)
		}
		audits, err := s.avco.Update(ctx, rc, r, id)
		if err != nil {
			return model.Outcome{}, err
		}
		return store.Note(ctx, r, model.EntityProject, id, rc.Now(), "AVCO updated for %d houses", len(audits))
	})
}

// HistoryRow is a status change with the days spent in its new status.
type HistoryRow struct {
	model.StatusChange
	DurationDays int `json:"duration_days"`
}

// Durations measures each status interval up to the next change, or to
// now for the latest one.
func Durations(changes []model.StatusChange, now time.Time) []HistoryRow {
	out := make([]HistoryRow, len(changes))
	for i, c := range changes {
		end := now
		if i+1 < len(changes) {
			end = changes[i+1].ChangedAt
		}
		out[i] = HistoryRow{StatusChange: c, DurationDays: int(end.Sub(c.ChangedAt).Hours() / 24)}
	}
	return out
}

// ProjectHistory returns the status history with durations.
func (s *Service) ProjectHistory(ctx context.Context, rc model.RequestContext, id int64) ([]HistoryRow, error) {
	var changes []model.StatusChange
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		if _, err := r.GetProject(ctx, id); err != nil {
			return err
		}
		var err error
		changes, err = r.ListStatusChanges(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Durations(changes, rc.Now()), nil
}

// ProjectSummary are a project's read-only totals.
type ProjectSummary struct {
	ProjectID    int64   `json:"project_id"`
	Status       string  `json:"status"`
	HouseCount   int     `json:"house_count"`
	TotalArea    float64 `json:"total_area"`
	DirectCost   float64 `json:"total_direct_cost"`
	IndirectCost float64 `json:"total_indirect_cost"`
	TotalCost    float64 `json:"total_cost"`
	CostPerSqm   float64 `json:"cost_per_sqm"`
	// Unallocated is posted cost that reached no assigned house.
	Unallocated   float64 `json:"unallocated_cost"`
	ProgressDays  int     `json:"progress_days"`
	RemainingDays int     `json:"remaining_days"`
}

// Summarize totals posted real costs over the assigned houses. allocated
// maps a cost id to the sum of its allocation rows.
func Summarize(p *model.Project, houses []model.House, costs []model.Cost, allocated map[int64]float64, now time.Time) ProjectSummary {
	sum := ProjectSummary{
		ProjectID:  p.ID,
		Status:     string(p.Status),
		HouseCount: len(houses),
		TotalArea:  hierarchy.TotalArea(houses),
	}
	for _, c := range costs {
		if c.State != model.CostPosted || c.HarvestDerived() {
			continue
		}
		if c.Type == model.CostDirect {
			sum.DirectCost += c.Amount
		} else {
			sum.IndirectCost += c.Amount
		}
		if gap := c.Amount - allocated[c.ID]; gap > 1e-6 {
			sum.Unallocated += gap
		}
	}
	sum.TotalCost = sum.DirectCost + sum.IndirectCost
	if sum.TotalArea > 0 {
		sum.CostPerSqm = sum.TotalCost / sum.TotalArea
	}
	if p.ActualStart != nil {
		sum.ProgressDays = daysBetween(*p.ActualStart, now) - p.TotalPausedDays
	}
	if p.ExpectedFinish != nil && p.Status.AcceptsCosts() {
		sum.RemainingDays = daysBetween(now, *p.ExpectedFinish)
	}
	return sum
}

// ProjectSummary computes the summary of one project.
func (s *Service) ProjectSummary(ctx context.Context, rc model.RequestContext, id int64) (ProjectSummary, error) {
	var sum ProjectSummary
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return err
		}
		tree, err := r.LoadFarmTree(ctx, p.FarmID)
		if err != nil {
			return err
		}
		ix := hierarchy.New(*tree)
		assignments, err := r.ListAssignments(ctx, id)
		if err != nil {
			return err
		}
		var houses []model.House
		for _, a := range assignments {
			if h, ok := ix.House(a.HouseID); ok {
				houses = append(houses, h)
			}
		}
		costs, err := r.ListCosts(ctx, id)
		if err != nil {
			return err
		}
		allocated := make(map[int64]float64, len(costs))
		for _, c := range costs {
			if c.State != model.CostPosted || c.HarvestDerived() {
				continue
			}
			rows, err := r.ListAllocations(ctx, c.ID)
			if err != nil {
				return err
			}
			allocated[c.ID] = allocation.Total(rows)
		}
		sum = Summarize(p, houses, costs, allocated, rc.Now())
		return nil
	})
	return sum, err
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
