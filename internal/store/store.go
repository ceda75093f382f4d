package store

import (
	"context"

	"github.com/sells-group/farm-ledger/internal/model"
)

// Repo is the transactional view of persisted farm data. Get* methods
// return a farmerr NotFound error for unknown ids; Find* methods return
// nil, nil.
type Repo interface {
	// Hierarchy
	CreateFarm(ctx context.Context, f *model.Farm) error
	CreateSector(ctx context.Context, s *model.Sector) error
	CreateUnit(ctx context.Context, u *model.Unit) error
	CreateHouse(ctx context.Context, h *model.House) error
	GetHouse(ctx context.Context, id int64) (*model.House, error)
	LoadFarmTree(ctx context.Context, farmID int64) (*model.FarmTree, error)

	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	AppendStatusChange(ctx context.Context, c *model.StatusChange) error
	ListStatusChanges(ctx context.Context, projectID int64) ([]model.StatusChange, error)

	// Assignments
	CreateAssignment(ctx context.Context, a *model.HouseAssignment) error
	GetAssignment(ctx context.Context, id int64) (*model.HouseAssignment, error)
	FindAssignment(ctx context.Context, projectID, houseID int64) (*model.HouseAssignment, error)
	ListAssignments(ctx context.Context, projectID int64) ([]model.HouseAssignment, error)
	// LockAssignments holds an exclusive lock on a project's assignments
	// until the transaction ends.
	LockAssignments(ctx context.Context, projectID int64) error

	// Costs and allocations
	CreateCost(ctx context.Context, c *model.Cost) error
	GetCost(ctx context.Context, id int64) (*model.Cost, error)
	UpdateCost(ctx context.Context, c *model.Cost) error
	ListCosts(ctx context.Context, projectID int64) ([]model.Cost, error)
	ReplaceAllocations(ctx context.Context, costID int64, rows []model.Allocation) error
	ListAllocations(ctx context.Context, costID int64) ([]model.Allocation, error)
	ListHouseAllocations(ctx context.Context, projectID, houseID int64) ([]model.AllocationLine, error)

	// Harvest entries, listed in (date, id) order
	CreateHarvest(ctx context.Context, e *model.HarvestEntry) error
	GetHarvest(ctx context.Context, id int64) (*model.HarvestEntry, error)
	UpdateHarvest(ctx context.Context, e *model.HarvestEntry) error
	DeleteHarvest(ctx context.Context, id int64) error
	ListHarvests(ctx context.Context, assignmentID int64) ([]model.HarvestEntry, error)

	// AVCO audits, listed in creation order
	CreateAVCOAudit(ctx context.Context, a *model.AVCOAudit) error
	ListAVCOAudits(ctx context.Context, projectID int64) ([]model.AVCOAudit, error)
	DeleteAVCOAudit(ctx context.Context, id int64) error

	// Product orders
	CreateOrder(ctx context.Context, o *model.ProductOrder) error
	GetOrder(ctx context.Context, id int64) (*model.ProductOrder, error)
	UpdateOrder(ctx context.Context, o *model.ProductOrder) error

	// Notes
	AddNote(ctx context.Context, n *model.Note) error
	ListNotes(ctx context.Context, entity string, entityID int64) ([]model.Note, error)
}

// Store opens units of work over the persisted data.
type Store interface {
	// InTx runs fn in one transaction. A nil return commits; any error
	// rolls back and is returned unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repo) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
