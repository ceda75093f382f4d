package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/model"
)

// execer abstracts the statement API of *sql.Tx and pgx.Tx. Queries are
// written with ? placeholders and rebound per dialect.
type execer interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rowIter, error)
	queryRow(ctx context.Context, query string, args ...any) scannable
}

type rowIter interface {
	scannable
	Next() bool
	Err() error
	Close()
}

type scannable interface {
	Scan(dest ...any) error
}

// rebind rewrites ? placeholders to $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// sqlRepo implements Repo over any execer. prefix names the backend in
// wrapped errors.
type sqlRepo struct {
	x      execer
	prefix string
}

func (r *sqlRepo) wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(err, r.prefix+": "+msg)
}

func (r *sqlRepo) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	var id int64
	if err := r.x.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, r.wrap(err, "insert "+what)
	}
	return id, nil
}

func (r *sqlRepo) update(ctx context.Context, what string, id int64, query string, args ...any) error {
	n, err := r.x.exec(ctx, query, args...)
	if err != nil {
		return r.wrap(err, "update "+what)
	}
	if n == 0 {
		return farmerr.Missing(what, id)
	}
	return nil
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// --- Hierarchy ---

func (r *sqlRepo) CreateFarm(ctx context.Context, f *model.Farm) error {
	id, err := r.insert(ctx, "farm",
		`INSERT INTO farms (name, code, company_id) VALUES (?, ?, ?)`,
		f.Name, f.Code, f.CompanyID)
	f.ID = id
	return err
}

func (r *sqlRepo) CreateSector(ctx context.Context, s *model.Sector) error {
	id, err := r.insert(ctx, "sector",
		`INSERT INTO sectors (farm_id, name, code) VALUES (?, ?, ?)`,
		s.FarmID, s.Name, s.Code)
	s.ID = id
	return err
}

func (r *sqlRepo) CreateUnit(ctx context.Context, u *model.Unit) error {
	id, err := r.insert(ctx, "unit",
		`INSERT INTO units (sector_id, name, code) VALUES (?, ?, ?)`,
		u.SectorID, u.Name, u.Code)
	u.ID = id
	return err
}

func (r *sqlRepo) CreateHouse(ctx context.Context, h *model.House) error {
	id, err := r.insert(ctx, "house",
		`INSERT INTO houses (unit_id, name, code, area, analytic_account) VALUES (?, ?, ?, ?, ?)`,
		h.UnitID, h.Name, h.Code, h.Area, h.AnalyticAccount)
	h.ID = id
	return err
}

const houseCols = `id, unit_id, name, code, area, analytic_account`

func scanHouse(row scannable) (*model.House, error) {
	var h model.House
	err := row.Scan(&h.ID, &h.UnitID, &h.Name, &h.Code, &h.Area, &h.AnalyticAccount)
	return &h, err
}

func (r *sqlRepo) GetHouse(ctx context.Context, id int64) (*model.House, error) {
	h, err := scanHouse(r.x.queryRow(ctx, `SELECT `+houseCols+` FROM houses WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, farmerr.Missing("house", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get house")
	}
	return h, nil
}

func (r *sqlRepo) LoadFarmTree(ctx context.Context, farmID int64) (*model.FarmTree, error) {
	var tree model.FarmTree
	err := r.x.queryRow(ctx, `SELECT id, name, code, company_id FROM farms WHERE id = ?`, farmID).
		Scan(&tree.Farm.ID, &tree.Farm.Name, &tree.Farm.Code, &tree.Farm.CompanyID)
	if isNoRows(err) {
		return nil, farmerr.Missing("farm", farmID)
	}
	if err != nil {
		return nil, r.wrap(err, "get farm")
	}

	tree.Sectors, err = queryAll(ctx, r, "list sectors",
		`SELECT id, farm_id, name, code FROM sectors WHERE farm_id = ? ORDER BY id`,
		func(row scannable) (model.Sector, error) {
			var s model.Sector
			err := row.Scan(&s.ID, &s.FarmID, &s.Name, &s.Code)
			return s, err
		}, farmID)
	if err != nil {
		return nil, err
	}

	tree.Units, err = queryAll(ctx, r, "list units",
		`SELECT u.id, u.sector_id, u.name, u.code FROM units u
		 JOIN sectors s ON s.id = u.sector_id WHERE s.farm_id = ? ORDER BY u.id`,
		func(row scannable) (model.Unit, error) {
			var u model.Unit
			err := row.Scan(&u.ID, &u.SectorID, &u.Name, &u.Code)
			return u, err
		}, farmID)
	if err != nil {
		return nil, err
	}

	tree.Houses, err = queryAll(ctx, r, "list houses",
		`SELECT h.id, h.unit_id, h.name, h.code, h.area, h.analytic_account FROM houses h
		 JOIN units u ON u.id = h.unit_id
		 JOIN sectors s ON s.id = u.sector_id WHERE s.farm_id = ? ORDER BY h.id`,
		func(row scannable) (model.House, error) {
			h, err := scanHouse(row)
			return *h, err
		}, farmID)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

// queryAll runs a query and scans every row with fn.
func queryAll[T any](ctx context.Context, r *sqlRepo, what, query string, fn func(scannable) (T, error), args ...any) ([]T, error) {
	rows, err := r.x.query(ctx, query, args...)
	if err != nil {
		return nil, r.wrap(err, what)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, r.wrap(err, what+" scan")
		}
		out = append(out, v)
	}
	return out, r.wrap(rows.Err(), what+" iterate")
}

// --- Projects ---

const projectCols = `id, farm_id, name, code, status, planned_start, actual_start, expected_finish,
	actual_finish, paused_date, total_paused_days, avco_updated, created_at`

func scanProject(row scannable) (model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.FarmID, &p.Name, &p.Code, &p.Status, &p.PlannedStart, &p.ActualStart,
		&p.ExpectedFinish, &p.ActualFinish, &p.PausedDate, &p.TotalPausedDays, &p.AVCOUpdated, &p.CreatedAt)
	return p, err
}

func (r *sqlRepo) CreateProject(ctx context.Context, p *model.Project) error {
	if p.Status == "" {
		p.Status = model.ProjectDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, "project",
		`INSERT INTO projects (farm_id, name, code, status, planned_start, actual_start, expected_finish,
		 actual_finish, paused_date, total_paused_days, avco_updated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FarmID, p.Name, p.Code, string(p.Status), utcPtr(p.PlannedStart), utcPtr(p.ActualStart),
		utcPtr(p.ExpectedFinish), utcPtr(p.ActualFinish), utcPtr(p.PausedDate), p.TotalPausedDays,
		p.AVCOUpdated, utc(p.CreatedAt))
	p.ID = id
	return err
}

func (r *sqlRepo) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	p, err := scanProject(r.x.queryRow(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, farmerr.Missing("project", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get project")
	}
	return &p, nil
}

func (r *sqlRepo) UpdateProject(ctx context.Context, p *model.Project) error {
	return r.update(ctx, "project", p.ID,
		`UPDATE projects SET name = ?, code = ?, status = ?, planned_start = ?, actual_start = ?,
		 expected_finish = ?, actual_finish = ?, paused_date = ?, total_paused_days = ?, avco_updated = ?
		 WHERE id = ?`,
		p.Name, p.Code, string(p.Status), utcPtr(p.PlannedStart), utcPtr(p.ActualStart),
		utcPtr(p.ExpectedFinish), utcPtr(p.ActualFinish), utcPtr(p.PausedDate), p.TotalPausedDays,
		p.AVCOUpdated, p.ID)
}

func (r *sqlRepo) AppendStatusChange(ctx context.Context, c *model.StatusChange) error {
	id, err := r.insert(ctx, "status change",
		`INSERT INTO project_status_history (project_id, old_status, new_status, reason, user_id, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ProjectID, string(c.OldStatus), string(c.NewStatus), c.Reason, c.UserID, utc(c.ChangedAt))
	c.ID = id
	return err
}

func (r *sqlRepo) ListStatusChanges(ctx context.Context, projectID int64) ([]model.StatusChange, error) {
	return queryAll(ctx, r, "list status changes",
		`SELECT id, project_id, old_status, new_status, reason, user_id, changed_at
		 FROM project_status_history WHERE project_id = ? ORDER BY changed_at, id`,
		func(row scannable) (model.StatusChange, error) {
			var c model.StatusChange
			err := row.Scan(&c.ID, &c.ProjectID, &c.OldStatus, &c.NewStatus, &c.Reason, &c.UserID, &c.ChangedAt)
			return c, err
		}, projectID)
}

// --- Assignments ---

const assignmentCols = `id, project_id, house_id, product_id, expected_qty, uom, season, notes`

func scanAssignment(row scannable) (model.HouseAssignment, error) {
	var a model.HouseAssignment
	err := row.Scan(&a.ID, &a.ProjectID, &a.HouseID, &a.ProductID, &a.ExpectedQty, &a.UOM, &a.Season, &a.Notes)
	return a, err
}

func (r *sqlRepo) CreateAssignment(ctx context.Context, a *model.HouseAssignment) error {
	id, err := r.insert(ctx, "assignment",
		`INSERT INTO house_assignments (project_id, house_id, product_id, expected_qty, uom, season, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.HouseID, a.ProductID, a.ExpectedQty, a.UOM, a.Season, a.Notes)
	a.ID = id
	return err
}

func (r *sqlRepo) GetAssignment(ctx context.Context, id int64) (*model.HouseAssignment, error) {
	a, err := scanAssignment(r.x.queryRow(ctx, `SELECT `+assignmentCols+` FROM house_assignments WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, farmerr.Missing("assignment", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get assignment")
	}
	return &a, nil
}

func (r *sqlRepo) FindAssignment(ctx context.Context, projectID, houseID int64) (*model.HouseAssignment, error) {
	a, err := scanAssignment(r.x.queryRow(ctx,
		`SELECT `+assignmentCols+` FROM house_assignments WHERE project_id = ? AND house_id = ?`,
		projectID, houseID))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, r.wrap(err, "find assignment")
	}
	return &a, nil
}

func (r *sqlRepo) ListAssignments(ctx context.Context, projectID int64) ([]model.HouseAssignment, error) {
	return queryAll(ctx, r, "list assignments",
		`SELECT `+assignmentCols+` FROM house_assignments WHERE project_id = ? ORDER BY id`,
		scanAssignment, projectID)
}

// LockAssignments is a no-op here; backends that support row locks
// override it.
func (r *sqlRepo) LockAssignments(context.Context, int64) error { return nil }

// --- Costs ---

const costCols = `id, project_id, name, cost_type, state, amount, cost_date, description, scope,
	payment_account, cost_account, order_id, harvest_entry_id, journal_entry_id`

func scanCost(row scannable) (model.Cost, error) {
	var c model.Cost
	var scope []byte
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Type, &c.State, &c.Amount, &c.Date, &c.Description,
		&scope, &c.PaymentAccount, &c.CostAccount, &c.OrderID, &c.HarvestEntryID, &c.JournalEntryID)
	if err != nil {
		return c, err
	}
	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &c.Scope); err != nil {
			return c, eris.Wrap(err, "unmarshal cost scope")
		}
	}
	return c, nil
}

func (r *sqlRepo) CreateCost(ctx context.Context, c *model.Cost) error {
	if c.State == "" {
		c.State = model.CostDraft
	}
	id, err := r.insert(ctx, "cost",
		`INSERT INTO costs (project_id, name, cost_type, state, amount, cost_date, description, scope,
		 payment_account, cost_account, order_id, harvest_entry_id, journal_entry_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProjectID, c.Name, string(c.Type), string(c.State), c.Amount, utc(c.Date), c.Description,
		toJSON(c.Scope), c.PaymentAccount, c.CostAccount, c.OrderID, c.HarvestEntryID, c.JournalEntryID)
	if err != nil {
		return err
	}
	c.ID = id
	if c.Name == "" {
		c.Name = model.SeqName(model.SeqCost, id)
		return r.update(ctx, "cost", id, `UPDATE costs SET name = ? WHERE id = ?`, c.Name, id)
	}
	return nil
}

func (r *sqlRepo) GetCost(ctx context.Context, id int64) (*model.Cost, error) {
	c, err := scanCost(r.x.queryRow(ctx, `SELECT `+costCols+` FROM costs WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, farmerr.Missing("cost", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get cost")
	}
	return &c, nil
}

func (r *sqlRepo) UpdateCost(ctx context.Context, c *model.Cost) error {
	return r.update(ctx, "cost", c.ID,
		`UPDATE costs SET name = ?, cost_type = ?, state = ?, amount = ?, cost_date = ?, description = ?,
		 scope = ?, payment_account = ?, cost_account = ?, order_id = ?, harvest_entry_id = ?,
		 journal_entry_id = ? WHERE id = ?`,
		c.Name, string(c.Type), string(c.State), c.Amount, utc(c.Date), c.Description, toJSON(c.Scope),
		c.PaymentAccount, c.CostAccount, c.OrderID, c.HarvestEntryID, c.JournalEntryID, c.ID)
}

func (r *sqlRepo) ListCosts(ctx context.Context, projectID int64) ([]model.Cost, error) {
	return queryAll(ctx, r, "list costs",
		`SELECT `+costCols+` FROM costs WHERE project_id = ? ORDER BY id`, scanCost, projectID)
}

// --- Allocations ---

var allocationColumns = []string{"cost_id", "project_id", "house_id", "house_area", "allocated_amount", "percentage"}

func allocationRows(costID int64, rows []model.Allocation) [][]any {
	out := make([][]any, 0, len(rows))
	for _, a := range rows {
		out = append(out, []any{costID, a.ProjectID, a.HouseID, a.HouseArea, a.AllocatedAmount, a.Percentage})
	}
	return out
}

func (r *sqlRepo) ReplaceAllocations(ctx context.Context, costID int64, rows []model.Allocation) error {
	if _, err := r.x.exec(ctx, `DELETE FROM cost_allocations WHERE cost_id = ?`, costID); err != nil {
		return r.wrap(err, "delete allocations")
	}
	for _, vals := range allocationRows(costID, rows) {
		if _, err := r.x.exec(ctx,
			`INSERT INTO cost_allocations (cost_id, project_id, house_id, house_area, allocated_amount, percentage)
			 VALUES (?, ?, ?, ?, ?, ?)`, vals...); err != nil {
			return r.wrap(err, "insert allocation")
		}
	}
	return nil
}

func scanAllocation(row scannable) (model.Allocation, error) {
	var a model.Allocation
	err := row.Scan(&a.ID, &a.CostID, &a.ProjectID, &a.HouseID, &a.HouseArea, &a.AllocatedAmount, &a.Percentage)
	return a, err
}

func (r *sqlRepo) ListAllocations(ctx context.Context, costID int64) ([]model.Allocation, error) {
	return queryAll(ctx, r, "list allocations",
		`SELECT id, cost_id, project_id, house_id, house_area, allocated_amount, percentage
		 FROM cost_allocations WHERE cost_id = ? ORDER BY house_id`, scanAllocation, costID)
}

func (r *sqlRepo) ListHouseAllocations(ctx context.Context, projectID, houseID int64) ([]model.AllocationLine, error) {
	return queryAll(ctx, r, "list house allocations",
		`SELECT a.id, a.cost_id, a.project_id, a.house_id, a.house_area, a.allocated_amount, a.percentage,
		 c.state, c.cost_type, c.cost_account, c.harvest_entry_id
		 FROM cost_allocations a JOIN costs c ON c.id = a.cost_id
		 WHERE a.project_id = ? AND a.house_id = ? ORDER BY a.cost_id`,
		func(row scannable) (model.AllocationLine, error) {
			var l model.AllocationLine
			var harvestID int64
			err := row.Scan(&l.ID, &l.CostID, &l.ProjectID, &l.HouseID, &l.HouseArea, &l.AllocatedAmount,
				&l.Percentage, &l.CostState, &l.CostType, &l.CostAccount, &harvestID)
			l.HarvestDerived = harvestID != 0
			return l, err
		}, projectID, houseID)
}

// --- Harvest entries ---

const harvestCols = `id, assignment_id, name, harvest_date, quantity, state, notes,
	remaining_cost_before, allocated_cost, transfer_id`

func scanHarvest(row scannable) (model.HarvestEntry, error) {
	var e model.HarvestEntry
	err := row.Scan(&e.ID, &e.AssignmentID, &e.Name, &e.Date, &e.Quantity, &e.State, &e.Notes,
		&e.RemainingCostBefore, &e.AllocatedCost, &e.TransferID)
	return e, err
}

func (r *sqlRepo) CreateHarvest(ctx context.Context, e *model.HarvestEntry) error {
	if e.State == "" {
		e.State = model.HarvestDone
	}
	id, err := r.insert(ctx, "harvest",
		`INSERT INTO harvest_entries (assignment_id, name, harvest_date, quantity, state, notes,
		 remaining_cost_before, allocated_cost, transfer_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AssignmentID, e.Name, utc(e.Date), e.Quantity, string(e.State), e.Notes,
		e.RemainingCostBefore, e.AllocatedCost, e.TransferID)
	if err != nil {
		return err
	}
	e.ID = id
	if e.Name == "" {
		e.Name = model.SeqName(model.SeqHarvest, id)
		return r.update(ctx, "harvest", id, `UPDATE harvest_entries SET name = ? WHERE id = ?`, e.Name, id)
	}
	return nil
}

func (r *sqlRepo) GetHarvest(ctx context.Context, id int64) (*model.HarvestEntry, error) {
	e, err := scanHarvest(r.x.queryRow(ctx, `SELECT `+harvestCols+` FROM harvest_entries WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, farmerr.Missing("harvest", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get harvest")
	}
	return &e, nil
}

func (r *sqlRepo) UpdateHarvest(ctx context.Context, e *model.HarvestEntry) error {
	return r.update(ctx, "harvest", e.ID,
		`UPDATE harvest_entries SET name = ?, harvest_date = ?, quantity = ?, state = ?, notes = ?,
		 remaining_cost_before = ?, allocated_cost = ?, transfer_id = ? WHERE id = ?`,
		e.Name, utc(e.Date), e.Quantity, string(e.State), e.Notes, e.RemainingCostBefore,
		e.AllocatedCost, e.TransferID, e.ID)
}

func (r *sqlRepo) DeleteHarvest(ctx context.Context, id int64) error {
	n, err := r.x.exec(ctx, `DELETE FROM harvest_entries WHERE id = ?`, id)
	if err != nil {
		return r.wrap(err, "delete harvest")
	}
	if n == 0 {
		return farmerr.Missing("harvest", id)
	}
	return nil
}

func (r *sqlRepo) ListHarvests(ctx context.Context, assignmentID int64) ([]model.HarvestEntry, error) {
	entries, err := queryAll(ctx, r, "list harvests",
		`SELECT `+harvestCols+` FROM harvest_entries WHERE assignment_id = ? ORDER BY harvest_date, id`,
		scanHarvest, assignmentID)
	if err != nil {
		return nil, err
	}
	// sqlite compares timestamps as text; re-sort on the parsed values.
	slices.SortStableFunc(entries, compareHarvest)
	return entries, nil
}

func compareHarvest(a, b model.HarvestEntry) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}

// --- AVCO audits ---

func (r *sqlRepo) CreateAVCOAudit(ctx context.Context, a *model.AVCOAudit) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, "avco audit",
		`INSERT INTO avco_audits (project_id, house_id, product_id, target_unit_cost, total_allocated,
		 total_quantity, previous_price, harvest_entry_ids, transfer_ids, layers, journal_entry_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.HouseID, a.ProductID, a.TargetUnitCost, a.TotalAllocated, a.TotalQuantity,
		a.PreviousPrice, toJSON(a.HarvestEntryIDs), toJSON(a.TransferIDs), toJSON(a.Layers),
		a.JournalEntryID, utc(a.CreatedAt))
	a.ID = id
	return err
}

func (r *sqlRepo) ListAVCOAudits(ctx context.Context, projectID int64) ([]model.AVCOAudit, error) {
	return queryAll(ctx, r, "list avco audits",
		`SELECT id, project_id, house_id, product_id, target_unit_cost, total_allocated, total_quantity,
		 previous_price, harvest_entry_ids, transfer_ids, layers, journal_entry_id, created_at
		 FROM avco_audits WHERE project_id = ? ORDER BY id`,
		func(row scannable) (model.AVCOAudit, error) {
			var a model.AVCOAudit
			var entries, transfers, layers []byte
			if err := row.Scan(&a.ID, &a.ProjectID, &a.HouseID, &a.ProductID, &a.TargetUnitCost,
				&a.TotalAllocated, &a.TotalQuantity, &a.PreviousPrice, &entries, &transfers, &layers,
				&a.JournalEntryID, &a.CreatedAt); err != nil {
				return a, err
			}
			if err := json.Unmarshal(entries, &a.HarvestEntryIDs); err != nil {
				return a, eris.Wrap(err, "unmarshal audit entries")
			}
			if err := json.Unmarshal(transfers, &a.TransferIDs); err != nil {
				return a, eris.Wrap(err, "unmarshal audit transfers")
			}
			if err := json.Unmarshal(layers, &a.Layers); err != nil {
				return a, eris.Wrap(err, "unmarshal audit layers")
			}
			return a, nil
		}, projectID)
}

func (r *sqlRepo) DeleteAVCOAudit(ctx context.Context, id int64) error {
	n, err := r.x.exec(ctx, `DELETE FROM avco_audits WHERE id = ?`, id)
	if err != nil {
		return r.wrap(err, "delete avco audit")
	}
	if n == 0 {
		return farmerr.Missing("avco audit", id)
	}
	return nil
}

// --- Orders ---

func (r *sqlRepo) CreateOrder(ctx context.Context, o *model.ProductOrder) error {
	if o.State == "" {
		o.State = model.OrderDraft
	}
	id, err := r.insert(ctx, "order",
		`INSERT INTO product_orders (project_id, name, state, is_direct, requester_id, request_date, notes,
		 scope, transfer_id, journal_entry_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ProjectID, o.Name, string(o.State), o.IsDirect, o.RequesterID, utc(o.RequestDate), o.Notes,
		toJSON(o.Scope), o.TransferID, o.JournalEntryID)
	if err != nil {
		return err
	}
	o.ID = id
	if o.Name == "" {
		o.Name = model.SeqName(model.SeqOrder, id)
		if err := r.update(ctx, "order", id, `UPDATE product_orders SET name = ? WHERE id = ?`, o.Name, id); err != nil {
			return err
		}
	}
	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = id
		lineID, err := r.insert(ctx, "order line",
			`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, justification)
			 VALUES (?, ?, ?, ?, ?)`,
			id, l.ProductID, l.Quantity, l.UnitPrice, l.Justification)
		if err != nil {
			return err
		}
		l.ID = lineID
	}
	return nil
}

func (r *sqlRepo) GetOrder(ctx context.Context, id int64) (*model.ProductOrder, error) {
	var o model.ProductOrder
	var scope []byte
	err := r.x.queryRow(ctx,
		`SELECT id, project_id, name, state, is_direct, requester_id, request_date, notes, scope,
		 transfer_id, journal_entry_id FROM product_orders WHERE id = ?`, id).
		Scan(&o.ID, &o.ProjectID, &o.Name, &o.State, &o.IsDirect, &o.RequesterID, &o.RequestDate,
			&o.Notes, &scope, &o.TransferID, &o.JournalEntryID)
	if isNoRows(err) {
		return nil, farmerr.Missing("order", id)
	}
	if err != nil {
		return nil, r.wrap(err, "get order")
	}
	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &o.Scope); err != nil {
			return nil, r.wrap(err, "unmarshal order scope")
		}
	}

	o.Lines, err = queryAll(ctx, r, "list order lines",
		`SELECT id, order_id, product_id, quantity, unit_price, justification
		 FROM order_lines WHERE order_id = ? ORDER BY id`,
		func(row scannable) (model.OrderLine, error) {
			var l model.OrderLine
			err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Justification)
			return l, err
		}, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *sqlRepo) UpdateOrder(ctx context.Context, o *model.ProductOrder) error {
	return r.update(ctx, "order", o.ID,
		`UPDATE product_orders SET state = ?, is_direct = ?, notes = ?, scope = ?, transfer_id = ?,
		 journal_entry_id = ? WHERE id = ?`,
		string(o.State), o.IsDirect, o.Notes, toJSON(o.Scope), o.TransferID, o.JournalEntryID, o.ID)
}

// --- Notes ---

func (r *sqlRepo) AddNote(ctx context.Context, n *model.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, "note",
		`INSERT INTO notes (entity, entity_id, body, created_at) VALUES (?, ?, ?, ?)`,
		n.Entity, n.EntityID, n.Body, utc(n.CreatedAt))
	n.ID = id
	return err
}

func (r *sqlRepo) ListNotes(ctx context.Context, entity string, entityID int64) ([]model.Note, error) {
	return queryAll(ctx, r, "list notes",
		`SELECT id, entity, entity_id, body, created_at FROM notes
		 WHERE entity = ? AND entity_id = ? ORDER BY id`,
		func(row scannable) (model.Note, error) {
			var n model.Note
			err := row.Scan(&n.ID, &n.Entity, &n.EntityID, &n.Body, &n.CreatedAt)
			return n, err
		}, entity, entityID)
}
