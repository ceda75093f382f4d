package workflow

import (
	"context"
	"strconv"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/harvest"
	"github.com/sells-group/farm-ledger/internal/hierarchy"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// AssignHouse binds a house of the project's farm to the project. A
// product, when given, must be a produce item.
func (s *Service) AssignHouse(ctx context.Context, a *model.HouseAssignment) error {
	if err := farmerr.Check(a); err != nil {
		return err
	}
	if a.ProductID != 0 {
		p, err := s.gw.Inventory().Product(ctx, a.ProductID)
		if err != nil {
			return farmerr.Invalid(farmerr.MsgInvalidField, "product_id", strconv.FormatInt(a.ProductID, 10))
		}
		if !s.produce.IsProduce(p) {
			return farmerr.Invalid(farmerr.MsgProductNotProduce, p.Name)
		}
		if a.UOM == "" {
			a.UOM = p.UOM
		}
	}
	return s.run(ctx, "assign_house", func(ctx context.Context, r store.Repo) error {
		p, err := r.GetProject(ctx, a.ProjectID)
		if err != nil {
			return err
		}
		tree, err := r.LoadFarmTree(ctx, p.FarmID)
		if err != nil {
			return err
		}
		if !hierarchy.New(*tree).Contains(a.HouseID) {
			return farmerr.Invalid(farmerr.MsgHouseNotOnFarm, a.HouseID, p.FarmID)
		}
		existing, err := r.FindAssignment(ctx, a.ProjectID, a.HouseID)
		if err != nil {
			return err
		}
		if existing != nil {
			return farmerr.Forbidden(farmerr.MsgAssignmentDuplicate, a.HouseID, a.ProjectID)
		}
		return r.CreateAssignment(ctx, a)
	})
}

// Assignments lists a project's house assignments.
func (s *Service) Assignments(ctx context.Context, projectID int64) ([]model.HouseAssignment, error) {
	var out []model.HouseAssignment
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		out, err = r.ListAssignments(ctx, projectID)
		return err
	})
	return out, err
}

// AssignmentStats returns the harvest and cost figures of an assignment.
func (s *Service) AssignmentStats(ctx context.Context, id int64) (harvest.Stats, error) {
	var st harvest.Stats
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		a, err := r.GetAssignment(ctx, id)
		if err != nil {
			return err
		}
		st, err = s.harvest.Stats(ctx, r, a)
		return err
	})
	return st, err
}

// HouseAllocations lists every allocation line charged to a project house.
func (s *Service) HouseAllocations(ctx context.Context, projectID, houseID int64) ([]model.AllocationLine, error) {
	var out []model.AllocationLine
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		out, err = r.ListHouseAllocations(ctx, projectID, houseID)
		return err
	})
	return out, err
}
