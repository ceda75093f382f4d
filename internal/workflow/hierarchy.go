package workflow

import (
	"context"

	"github.com/sells-group/farm-ledger/internal/farmerr"
	"github.com/sells-group/farm-ledger/internal/hierarchy"
	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/store"
)

// CreateFarm validates and stores a farm.
func (s *Service) CreateFarm(ctx context.Context, rc model.RequestContext, f *model.Farm) error {
	if err := farmerr.Check(f); err != nil {
		return err
	}
	if f.CompanyID == 0 {
		f.CompanyID = rc.CompanyID
	}
	return s.run(ctx, "create_farm", func(ctx context.Context, r store.Repo) error {
		return r.CreateFarm(ctx, f)
	})
}

// CreateSector validates and stores a sector.
func (s *Service) CreateSector(ctx context.Context, sec *model.Sector) error {
	if err := farmerr.Check(sec); err != nil {
		return err
	}
	return s.run(ctx, "create_sector", func(ctx context.Context, r store.Repo) error {
		return r.CreateSector(ctx, sec)
	})
}

// CreateUnit validates and stores a unit.
func (s *Service) CreateUnit(ctx context.Context, u *model.Unit) error {
	if err := farmerr.Check(u); err != nil {
		return err
	}
	return s.run(ctx, "create_unit", func(ctx context.Context, r store.Repo) error {
		return r.CreateUnit(ctx, u)
	})
}

// CreateHouse validates and stores a house. Area must be positive.
func (s *Service) CreateHouse(ctx context.Context, h *model.House) error {
	if err := farmerr.Check(h); err != nil {
		return err
	}
	return s.run(ctx, "create_house", func(ctx context.Context, r store.Repo) error {
		return r.CreateHouse(ctx, h)
	})
}

// FarmTree returns the farm with everything below it.
func (s *Service) FarmTree(ctx context.Context, farmID int64) (*model.FarmTree, error) {
	var tree *model.FarmTree
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repo) error {
		var err error
		tree, err = r.LoadFarmTree(ctx, farmID)
		return err
	})
	return tree, err
}

// FarmSummary counts a farm's nodes and sums its area.
func (s *Service) FarmSummary(ctx context.Context, farmID int64) (hierarchy.Summary, error) {
	tree, err := s.FarmTree(ctx, farmID)
	if err != nil {
		return hierarchy.Summary{}, err
	}
	return hierarchy.New(*tree).Summary(), nil
}
