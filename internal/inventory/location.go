package inventory

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/farm-ledger/internal/config"
	"github.com/sells-group/farm-ledger/internal/farmerr"
)

// Well-known location references used when nothing is configured.
const (
	RefProduction = "production"
	RefStock      = "stock"
)

// Route names a location role the ledger needs.
type Route struct {
	Role       string
	Configured string
	Ref        string
	Usage      Usage
}

// Routes returns the harvest and order location roles from config.
func Routes(c config.InventoryConfig) (harvestSrc, harvestDst, orderSrc, orderDst Route) {
	harvestSrc = Route{Role: "harvest source", Configured: c.HarvestSourceLocation, Ref: RefProduction, Usage: UsageProduction}
	harvestDst = Route{Role: "harvest destination", Configured: c.HarvestDestLocation, Ref: RefStock, Usage: UsageInternal}
	orderSrc = Route{Role: "order source", Ref: RefStock, Usage: UsageInternal}
	orderDst = Route{Role: "order destination", Configured: c.OrderDestLocation, Ref: RefProduction, Usage: UsageProduction}
	return
}

// ResolveLocation picks the configured location, then the well-known
// reference, then the first location of the expected usage. Failing all
// three is a configuration error.
func ResolveLocation(ctx context.Context, inv Inventory, r Route) (*Location, error) {
	if r.Configured != "" {
		loc, err := inv.Location(ctx, r.Configured)
		if err != nil {
			return nil, eris.Wrapf(err, "inventory: lookup %s", r.Configured)
		}
		if loc != nil {
			return loc, nil
		}
	}
	if r.Ref != "" {
		loc, err := inv.LocationByRef(ctx, r.Ref)
		if err != nil {
			return nil, eris.Wrapf(err, "inventory: lookup ref %s", r.Ref)
		}
		if loc != nil {
			return loc, nil
		}
	}
	locs, err := inv.LocationsByUsage(ctx, r.Usage)
	if err != nil {
		return nil, eris.Wrapf(err, "inventory: list %s locations", r.Usage)
	}
	if len(locs) > 0 {
		return &locs[0], nil
	}
	return nil, farmerr.Blocked(farmerr.MsgNoLocation, r.Role)
}

// ProduceMatcher decides which products are farm produce by product code.
type ProduceMatcher struct {
	re *regexp.Regexp
}

// NewProduceMatcher compiles the produce code pattern.
func NewProduceMatcher(pattern string) (*ProduceMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "inventory: compile produce pattern %q", pattern)
	}
	return &ProduceMatcher{re: re}, nil
}

// IsProduce reports whether p is storable produce.
func (m *ProduceMatcher) IsProduce(p *Product) bool {
	return p != nil && p.Storable && m.re.MatchString(p.Code)
}
