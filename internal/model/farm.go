package model

// Farm is the root of the physical hierarchy.
type Farm struct {
	ID        int64  `json:"id"`
	Name      string `json:"name" validate:"required"`
	Code      string `json:"code"`
	CompanyID int64  `json:"company_id"`
}

// Sector groups units within a farm.
type Sector struct {
	ID     int64  `json:"id"`
	FarmID int64  `json:"farm_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Code   string `json:"code"`
}

// Unit groups houses within a sector.
type Unit struct {
	ID       int64  `json:"id"`
	SectorID int64  `json:"sector_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code"`
}

// House is the leaf of the hierarchy and the unit of cost attribution.
type House struct {
	ID              int64   `json:"id"`
	UnitID          int64   `json:"unit_id" validate:"required"`
	Name            string  `json:"name" validate:"required"`
	Code            string  `json:"code"`
	Area            float64 `json:"area" validate:"gt=0"`
	AnalyticAccount string  `json:"analytic_account,omitempty"`
}

// FarmTree is a flat snapshot of one farm and everything below it.
type FarmTree struct {
	Farm    Farm     `json:"farm"`
	Sectors []Sector `json:"sectors"`
	Units   []Unit   `json:"units"`
	Houses  []House  `json:"houses"`
}
