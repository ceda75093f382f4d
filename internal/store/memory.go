package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/model"
)

// MemoryStore implements Store in process memory. Each transaction works on
// a copy of the state that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

type memoryState struct {
	nextID      int64
	farms       map[int64]model.Farm
	sectors     map[int64]model.Sector
	units       map[int64]model.Unit
	houses      map[int64]model.House
	projects    map[int64]model.Project
	history     map[int64]model.StatusChange
	assignments map[int64]model.HouseAssignment
	costs       map[int64]model.Cost
	allocations map[int64][]model.Allocation // by cost id
	harvests    map[int64]model.HarvestEntry
	audits      map[int64]model.AVCOAudit
	orders      map[int64]model.ProductOrder
	notes       map[int64]model.Note
}

func newMemoryState() memoryState {
	return memoryState{
		farms:       map[int64]model.Farm{},
		sectors:     map[int64]model.Sector{},
		units:       map[int64]model.Unit{},
		houses:      map[int64]model.House{},
		projects:    map[int64]model.Project{},
		history:     map[int64]model.StatusChange{},
		assignments: map[int64]model.HouseAssignment{},
		costs:       map[int64]model.Cost{},
		allocations: map[int64][]model.Allocation{},
		harvests:    map[int64]model.HarvestEntry{},
		audits:      map[int64]model.AVCOAudit{},
		orders:      map[int64]model.ProductOrder{},
		notes:       map[int64]model.Note{},
	}
}

// clone copies the maps. Stored values are never mutated in place, so a
// shallow copy of each map is enough.
func (s memoryState) clone() memoryState {
	return memoryState{
		nextID:      s.nextID,
		farms:       maps.Clone(s.farms),
		sectors:     maps.Clone(s.sectors),
		units:       maps.Clone(s.units),
		houses:      maps.Clone(s.houses),
		projects:    maps.Clone(s.projects),
		history:     maps.Clone(s.history),
		assignments: maps.Clone(s.assignments),
		costs:       maps.Clone(s.costs),
		allocations: maps.Clone(s.allocations),
		harvests:    maps.Clone(s.harvests),
		audits:      maps.Clone(s.audits),
		orders:      maps.Clone(s.orders),
		notes:       maps.Clone(s.notes),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// InTx runs fn against a copy of the state and commits it on success.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repo) error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "memory: begin tx")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryRepo{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type memoryRepo struct {
	state memoryState
}

func (r *memoryRepo) id() int64 {
	r.state.nextID++
	return r.state.nextID
}

func sortedByID[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// --- Hierarchy ---

func (r *memoryRepo) CreateFarm(_ context.Context, f *model.Farm) error {
	f.ID = r.id()
	r.state.farms[f.ID] = *f
	return nil
}

func (r *memoryRepo) CreateSector(_ context.Context, s *model.Sector) error {
	if _, ok := r.state.farms[s.FarmID]; !ok {
		return farmerr.Missing("farm", s.FarmID)
	}
	s.ID = r.id()
	r.state.sectors[s.ID] = *s
	return nil
}

func (r *memoryRepo) CreateUnit(_ context.Context, u *model.Unit) error {
	if _, ok := r.state.sectors[u.SectorID]; !ok {
		return farmerr.Missing("sector", u.SectorID)
	}
	u.ID = r.id()
	r.state.units[u.ID] = *u
	return nil
}

func (r *memoryRepo) CreateHouse(_ context.Context, h *model.House) error {
	if _, ok := r.state.units[h.UnitID]; !ok {
		return farmerr.Missing("unit", h.UnitID)
	}
	h.ID = r.id()
	r.state.houses[h.ID] = *h
	return nil
}

func (r *memoryRepo) GetHouse(_ context.Context, id int64) (*model.House, error) {
	h, ok := r.state.houses[id]
	if !ok {
		return nil, farmerr.Missing("house", id)
	}
	return &h, nil
}

func (r *memoryRepo) LoadFarmTree(_ context.Context, farmID int64) (*model.FarmTree, error) {
	farm, ok := r.state.farms[farmID]
	if !ok {
		return nil, farmerr.Missing("farm", farmID)
	}
	tree := &model.FarmTree{Farm: farm}
	sectorIDs := map[int64]bool{}
	tree.Sectors = sortedByID(r.state.sectors, func(s model.Sector) bool { return s.FarmID == farmID })
	for _, s := range tree.Sectors {
		sectorIDs[s.ID] = true
	}
	unitIDs := map[int64]bool{}
	tree.Units = sortedByID(r.state.units, func(u model.Unit) bool { return sectorIDs[u.SectorID] })
	for _, u := range tree.Units {
		unitIDs[u.ID] = true
	}
	tree.Houses = sortedByID(r.state.houses, func(h model.House) bool { return unitIDs[h.UnitID] })
	return tree, nil
}

// --- Projects ---

func (r *memoryRepo) CreateProject(_ context.Context, p *model.Project) error {
	if _, ok := r.state.farms[p.FarmID]; !ok {
		return farmerr.Missing("farm", p.FarmID)
	}
	if p.Status == "" {
		p.Status = model.ProjectDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ID = r.id()
	r.state.projects[p.ID] = *p
	return nil
}

func (r *memoryRepo) GetProject(_ context.Context, id int64) (*model.Project, error) {
	p, ok := r.state.projects[id]
	if !ok {
		return nil, farmerr.Missing("project", id)
	}
	return &p, nil
}

func (r *memoryRepo) UpdateProject(_ context.Context, p *model.Project) error {
	if _, ok := r.state.projects[p.ID]; !ok {
		return farmerr.Missing("project", p.ID)
	}
	r.state.projects[p.ID] = *p
	return nil
}

func (r *memoryRepo) AppendStatusChange(_ context.Context, c *model.StatusChange) error {
	c.ID = r.id()
	r.state.history[c.ID] = *c
	return nil
}

func (r *memoryRepo) ListStatusChanges(_ context.Context, projectID int64) ([]model.StatusChange, error) {
	out := sortedByID(r.state.history, func(c model.StatusChange) bool { return c.ProjectID == projectID })
	slices.SortStableFunc(out, func(a, b model.StatusChange) int { return a.ChangedAt.Compare(b.ChangedAt) })
	return out, nil
}

// --- Assignments ---

func (r *memoryRepo) CreateAssignment(_ context.Context, a *model.HouseAssignment) error {
	for _, existing := range r.state.assignments {
		if existing.ProjectID == a.ProjectID && existing.HouseID == a.HouseID {
			return farmerr.Invalid(farmerr.MsgAssignmentDuplicate, a.HouseID, a.ProjectID)
		}
	}
	a.ID = r.id()
	r.state.assignments[a.ID] = *a
	return nil
}

func (r *memoryRepo) GetAssignment(_ context.Context, id int64) (*model.HouseAssignment, error) {
	a, ok := r.state.assignments[id]
	if !ok {
		return nil, farmerr.Missing("assignment", id)
	}
	return &a, nil
}

func (r *memoryRepo) FindAssignment(_ context.Context, projectID, houseID int64) (*model.HouseAssignment, error) {
	for _, a := range r.state.assignments {
		if a.ProjectID == projectID && a.HouseID == houseID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) ListAssignments(_ context.Context, projectID int64) ([]model.HouseAssignment, error) {
	return sortedByID(r.state.assignments, func(a model.HouseAssignment) bool { return a.ProjectID == projectID }), nil
}

// LockAssignments is satisfied by the store-wide transaction lock.
func (r *memoryRepo) LockAssignments(context.Context, int64) error { return nil }

// --- Costs ---

func cloneCost(c model.Cost) model.Cost {
	c.Scope = c.Scope.Clone()
	return c
}

func (r *memoryRepo) CreateCost(_ context.Context, c *model.Cost) error {
	if c.State == "" {
		c.State = model.CostDraft
	}
	c.ID = r.id()
	if c.Name == "" {
		c.Name = model.SeqName(model.SeqCost, c.ID)
	}
	r.state.costs[c.ID] = cloneCost(*c)
	return nil
}

func (r *memoryRepo) GetCost(_ context.Context, id int64) (*model.Cost, error) {
	c, ok := r.state.costs[id]
	if !ok {
		return nil, farmerr.Missing("cost", id)
	}
	c = cloneCost(c)
	return &c, nil
}

func (r *memoryRepo) UpdateCost(_ context.Context, c *model.Cost) error {
	if _, ok := r.state.costs[c.ID]; !ok {
		return farmerr.Missing("cost", c.ID)
	}
	r.state.costs[c.ID] = cloneCost(*c)
	return nil
}

func (r *memoryRepo) ListCosts(_ context.Context, projectID int64) ([]model.Cost, error) {
	out := sortedByID(r.state.costs, func(c model.Cost) bool { return c.ProjectID == projectID })
	for i := range out {
		out[i] = cloneCost(out[i])
	}
	return out, nil
}

func (r *memoryRepo) ReplaceAllocations(_ context.Context, costID int64, rows []model.Allocation) error {
	fresh := make([]model.Allocation, len(rows))
	for i, a := range rows {
		a.ID = r.id()
		a.CostID = costID
		fresh[i] = a
	}
	slices.SortFunc(fresh, func(a, b model.Allocation) int { return cmp.Compare(a.HouseID, b.HouseID) })
	if len(fresh) == 0 {
		delete(r.state.allocations, costID)
		return nil
	}
	r.state.allocations[costID] = fresh
	return nil
}

func (r *memoryRepo) ListAllocations(_ context.Context, costID int64) ([]model.Allocation, error) {
	return slices.Clone(r.state.allocations[costID]), nil
}

func (r *memoryRepo) ListHouseAllocations(_ context.Context, projectID, houseID int64) ([]model.AllocationLine, error) {
	costIDs := slices.Sorted(maps.Keys(r.state.allocations))
	var out []model.AllocationLine
	for _, costID := range costIDs {
		c := r.state.costs[costID]
		for _, a := range r.state.allocations[costID] {
			if a.ProjectID != projectID || a.HouseID != houseID {
				continue
			}
			out = append(out, model.AllocationLine{
				Allocation:     a,
				CostState:      c.State,
				CostType:       c.Type,
				CostAccount:    c.CostAccount,
				HarvestDerived: c.HarvestDerived(),
			})
		}
	}
	return out, nil
}

// --- Harvest entries ---

func (r *memoryRepo) CreateHarvest(_ context.Context, e *model.HarvestEntry) error {
	if _, ok := r.state.assignments[e.AssignmentID]; !ok {
		return farmerr.Missing("assignment", e.AssignmentID)
	}
	if e.State == "" {
		e.State = model.HarvestDone
	}
	e.ID = r.id()
	if e.Name == "" {
		e.Name = model.SeqName(model.SeqHarvest, e.ID)
	}
	r.state.harvests[e.ID] = *e
	return nil
}

func (r *memoryRepo) GetHarvest(_ context.Context, id int64) (*model.HarvestEntry, error) {
	e, ok := r.state.harvests[id]
	if !ok {
		return nil, farmerr.Missing("harvest", id)
	}
	return &e, nil
}

func (r *memoryRepo) UpdateHarvest(_ context.Context, e *model.HarvestEntry) error {
	if _, ok := r.state.harvests[e.ID]; !ok {
		return farmerr.Missing("harvest", e.ID)
	}
	r.state.harvests[e.ID] = *e
	return nil
}

func (r *memoryRepo) DeleteHarvest(_ context.Context, id int64) error {
	if _, ok := r.state.harvests[id]; !ok {
		return farmerr.Missing("harvest", id)
	}
	delete(r.state.harvests, id)
	return nil
}

func (r *memoryRepo) ListHarvests(_ context.Context, assignmentID int64) ([]model.HarvestEntry, error) {
	out := sortedByID(r.state.harvests, func(e model.HarvestEntry) bool { return e.AssignmentID == assignmentID })
	slices.SortStableFunc(out, compareHarvest)
	return out, nil
}

// --- AVCO audits ---

func cloneAudit(a model.AVCOAudit) model.AVCOAudit {
	a.HarvestEntryIDs = slices.Clone(a.HarvestEntryIDs)
	a.TransferIDs = slices.Clone(a.TransferIDs)
	a.Layers = slices.Clone(a.Layers)
	return a
}

func (r *memoryRepo) CreateAVCOAudit(_ context.Context, a *model.AVCOAudit) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ID = r.id()
	r.state.audits[a.ID] = cloneAudit(*a)
	return nil
}

func (r *memoryRepo) ListAVCOAudits(_ context.Context, projectID int64) ([]model.AVCOAudit, error) {
	out := sortedByID(r.state.audits, func(a model.AVCOAudit) bool { return a.ProjectID == projectID })
	for i := range out {
		out[i] = cloneAudit(out[i])
	}
	return out, nil
}

func (r *memoryRepo) DeleteAVCOAudit(_ context.Context, id int64) error {
	if _, ok := r.state.audits[id]; !ok {
		return farmerr.Missing("avco audit", id)
	}
	delete(r.state.audits, id)
	return nil
}

// --- Orders ---

func cloneOrder(o model.ProductOrder) model.ProductOrder {
	o.Scope = o.Scope.Clone()
	o.Lines = slices.Clone(o.Lines)
	return o
}

func (r *memoryRepo) CreateOrder(_ context.Context, o *model.ProductOrder) error {
	if _, ok := r.state.projects[o.ProjectID]; !ok {
		return farmerr.Missing("project", o.ProjectID)
	}
	if o.State == "" {
		o.State = model.OrderDraft
	}
	o.ID = r.id()
	if o.Name == "" {
		o.Name = model.SeqName(model.SeqOrder, o.ID)
	}
	for i := range o.Lines {
		o.Lines[i].ID = r.id()
		o.Lines[i].OrderID = o.ID
	}
	r.state.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *memoryRepo) GetOrder(_ context.Context, id int64) (*model.ProductOrder, error) {
	o, ok := r.state.orders[id]
	if !ok {
		return nil, farmerr.Missing("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *memoryRepo) UpdateOrder(_ context.Context, o *model.ProductOrder) error {
	existing, ok := r.state.orders[o.ID]
	if !ok {
		return farmerr.Missing("order", o.ID)
	}
	updated := cloneOrder(*o)
	updated.Lines = existing.Lines
	r.state.orders[o.ID] = updated
	return nil
}

// --- Notes ---

func (r *memoryRepo) AddNote(_ context.Context, n *model.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.ID = r.id()
	r.state.notes[n.ID] = *n
	return nil
}

func (r *memoryRepo) ListNotes(_ context.Context, entity string, entityID int64) ([]model.Note, error) {
	return sortedByID(r.state.notes, func(n model.Note) bool {
		return n.Entity == entity && n.EntityID == entityID
	}), nil
}
