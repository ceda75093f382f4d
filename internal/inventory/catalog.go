package inventory

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Catalog seeds a Memory inventory from YAML.
//
//	locations:
//	  - {id: WH/Stock, name: Stock, usage: internal, ref: stock}
//	products:
//	  - {id: 1, code: "7001", name: Tomatoes, storable: true, standard_price: 4}
//	stock:
//	  - {product_id: 1, location: WH/Stock, quantity: 100, unit_cost: 4}
type Catalog struct {
	Locations []Location   `yaml:"locations"`
	Products  []Product    `yaml:"products"`
	Stock     []StockEntry `yaml:"stock"`
}

// StockEntry is an opening balance.
type StockEntry struct {
	ProductID int64   `yaml:"product_id"`
	Location  string  `yaml:"location"`
	Quantity  float64 `yaml:"quantity"`
	UnitCost  float64 `yaml:"unit_cost"`
}

// DefaultCatalog holds the two locations every farm needs: a virtual
// production location and an internal stock location.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Locations: []Location{
			{ID: "Virtual/Production", Name: "Production", Usage: UsageProduction, Ref: RefProduction},
			{ID: "WH/Stock", Name: "Stock", Usage: UsageInternal, Ref: RefStock},
		},
	}
}

// ParseCatalog decodes a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "inventory: parse catalog")
	}
	return &c, nil
}

// LoadCatalog reads a catalog file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inventory: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// Apply loads the catalog into m. Stock entries are applied last.
func (c *Catalog) Apply(m *Memory) error {
	for _, l := range c.Locations {
		m.AddLocation(l)
	}
	for _, p := range c.Products {
		m.AddProduct(p)
	}
	for _, s := range c.Stock {
		if err := m.AddStock(s.ProductID, s.Location, s.Quantity, s.UnitCost); err != nil {
			return eris.Wrapf(err, "inventory: opening stock for product %d", s.ProductID)
		}
	}
	return nil
}
