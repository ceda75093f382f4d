// Package hierarchy indexes a farm's sector/unit/house tree for scope
// resolution and area lookups.
package hierarchy

import (
	"slices"

	"github.com/sells-group/farm-ledger/internal/model"
)

// Index is an arena of houses keyed by id with cached parent references.
type Index struct {
	farm    model.Farm
	houses  []model.House
	byID    map[int64]int
	unit    map[int64]int64 // unit id -> sector id
	sector  map[int64]bool
	byUnit  map[int64][]int
	bySect  map[int64][]int
	unitsOf map[int64][]int64
}

// New builds an Index from a farm snapshot. Houses whose unit or sector is
// missing from the snapshot are dropped.
func New(tree model.FarmTree) *Index {
	ix := &Index{
		farm:    tree.Farm,
		byID:    make(map[int64]int, len(tree.Houses)),
		unit:    make(map[int64]int64, len(tree.Units)),
		sector:  make(map[int64]bool, len(tree.Sectors)),
		byUnit:  make(map[int64][]int),
		bySect:  make(map[int64][]int),
		unitsOf: make(map[int64][]int64),
	}
	for _, s := range tree.Sectors {
		if s.FarmID == tree.Farm.ID {
			ix.sector[s.ID] = true
		}
	}
	for _, u := range tree.Units {
		if !ix.sector[u.SectorID] {
			continue
		}
		ix.unit[u.ID] = u.SectorID
		ix.unitsOf[u.SectorID] = append(ix.unitsOf[u.SectorID], u.ID)
	}

	houses := slices.Clone(tree.Houses)
	slices.SortFunc(houses, func(a, b model.House) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	for _, h := range houses {
		sectorID, ok := ix.unit[h.UnitID]
		if !ok {
			continue
		}
		idx := len(ix.houses)
		ix.houses = append(ix.houses, h)
		ix.byID[h.ID] = idx
		ix.byUnit[h.UnitID] = append(ix.byUnit[h.UnitID], idx)
		ix.bySect[sectorID] = append(ix.bySect[sectorID], idx)
	}
	return ix
}

// Farm returns the indexed farm.
func (ix *Index) Farm() model.Farm { return ix.farm }

// House looks up a house by id.
func (ix *Index) House(id int64) (model.House, bool) {
	idx, ok := ix.byID[id]
	if !ok {
		return model.House{}, false
	}
	return ix.houses[idx], true
}

// Contains reports whether the house belongs to this farm.
func (ix *Index) Contains(houseID int64) bool {
	_, ok := ix.byID[houseID]
	return ok
}

// Houses returns every house on the farm ordered by id.
func (ix *Index) Houses() []model.House {
	return slices.Clone(ix.houses)
}

// SectorOf returns the sector that contains the house.
func (ix *Index) SectorOf(houseID int64) (int64, bool) {
	idx, ok := ix.byID[houseID]
	if !ok {
		return 0, false
	}
	return ix.unit[ix.houses[idx].UnitID], true
}

// HousesInUnit returns the houses of one unit.
func (ix *Index) HousesInUnit(unitID int64) []model.House {
	return ix.collect(ix.byUnit[unitID])
}

// HousesInSector returns the houses of every unit in one sector.
func (ix *Index) HousesInSector(sectorID int64) []model.House {
	return ix.collect(ix.bySect[sectorID])
}

// UnitsInSector returns the unit ids of one sector.
func (ix *Index) UnitsInSector(sectorID int64) []int64 {
	return slices.Clone(ix.unitsOf[sectorID])
}

// Resolve expands a scope into the union of selected houses, houses of
// selected units and houses of units of selected sectors. The result is
// ordered by house id and free of duplicates; unknown ids are ignored.
func (ix *Index) Resolve(scope model.Scope) []model.House {
	seen := make(map[int]bool)
	add := func(idx int) { seen[idx] = true }

	for _, id := range scope.HouseIDs {
		if idx, ok := ix.byID[id]; ok {
			add(idx)
		}
	}
	for _, id := range scope.UnitIDs {
		for _, idx := range ix.byUnit[id] {
			add(idx)
		}
	}
	for _, id := range scope.SectorIDs {
		for _, idx := range ix.bySect[id] {
			add(idx)
		}
	}

	idxs := make([]int, 0, len(seen))
	for idx := range seen {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	return ix.collect(idxs)
}

func (ix *Index) collect(idxs []int) []model.House {
	out := make([]model.House, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, ix.houses[idx])
	}
	return out
}

// Restrict keeps only houses whose id is in allowed, preserving order.
func Restrict(houses []model.House, allowed map[int64]bool) []model.House {
	out := make([]model.House, 0, len(houses))
	for _, h := range houses {
		if allowed[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// TotalArea sums house areas.
func TotalArea(houses []model.House) float64 {
	var total float64
	for _, h := range houses {
		total += h.Area
	}
	return total
}

// Summary aggregates counts and area for a farm.
type Summary struct {
	Sectors   int     `json:"sectors"`
	Units     int     `json:"units"`
	Houses    int     `json:"houses"`
	TotalArea float64 `json:"total_area"`
}

// Summary counts the farm's nodes and sums its area.
func (ix *Index) Summary() Summary {
	return Summary{
		Sectors:   len(ix.sector),
		Units:     len(ix.unit),
		Houses:    len(ix.houses),
		TotalArea: TotalArea(ix.houses),
	}
}
