package catalog

import (
	"errors"
	"fmt"
	"time"
)

// PromotedRow pairs a promotional product row with its resolved promotion.
type PromotedRow struct {
	Product   Product
	Promotion Promotion
}

// Catalog holds product rows keyed by (name, promotion) and the promotion table.
// It performs no locking; callers serialise access.
type Catalog struct {
	order      []Key
	rows       map[Key]Product
	promotions map[string]Promotion
	now        func() time.Time
}

// New builds a catalog from rows in load order. Duplicate (name, promotion) rows are rejected.
// Rows referencing unknown promotions are accepted and surface ErrDataIntegrity on lookup.
func New(products []Product, promotions []Promotion, now func() time.Time) (*Catalog, error) {
	if now == nil {
		now = time.Now
	}
	c := &Catalog{
		order:      make([]Key, 0, len(products)),
		rows:       make(map[Key]Product, len(products)),
		promotions: make(map[string]Promotion, len(promotions)),
		now:        now,
	}
	for _, promo := range promotions {
		if _, dup := c.promotions[promo.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate promotion %q", ErrInvalidProduct, promo.Name)
		}
		c.promotions[promo.Name] = promo
	}
	for _, p := range products {
		key := p.Key()
		if _, dup := c.rows[key]; dup {
			return nil, fmt.Errorf("%w: duplicate row for %q", ErrInvalidProduct, p.Name)
		}
		c.order = append(c.order, key)
		c.rows[key] = p
	}
	return c, nil
}

// Now returns the catalog's reference instant.
func (c *Catalog) Now() time.Time {
	return c.now()
}

// Verify reports every product row whose promotion is missing from the promotion table.
func (c *Catalog) Verify() error {
	var joined error
	for _, key := range c.order {
		if key.Promotion == "" {
			continue
		}
		if _, ok := c.promotions[key.Promotion]; !ok {
			joined = errors.Join(joined, fmt.Errorf("%w: %q references %q", ErrDataIntegrity, key.Name, key.Promotion))
		}
	}
	return joined
}

// Promotion looks up a promotion by name.
func (c *Catalog) Promotion(name string) (Promotion, bool) {
	p, ok := c.promotions[name]
	return p, ok
}

// FindPromotionRow returns the promotional row for name when its promotion is valid now.
// A row linked to a promotion missing from the table yields ErrDataIntegrity.
func (c *Catalog) FindPromotionRow(name string) (PromotedRow, bool, error) {
	for _, key := range c.order {
		if key.Name != name || key.Promotion == "" {
			continue
		}
		promo, ok := c.promotions[key.Promotion]
		if !ok {
			return PromotedRow{}, false, fmt.Errorf("%w: %q references %q", ErrDataIntegrity, name, key.Promotion)
		}
		if !promo.ValidAt(c.now()) {
			return PromotedRow{}, false, nil
		}
		return PromotedRow{Product: c.rows[key], Promotion: promo}, true, nil
	}
	return PromotedRow{}, false, nil
}

// FindNormalRow returns the non-promotional row for name.
func (c *Catalog) FindNormalRow(name string) (Product, bool) {
	p, ok := c.rows[Key{Name: name}]
	return p, ok
}

// Get returns the row stored under key.
func (c *Catalog) Get(key Key) (Product, bool) {
	p, ok := c.rows[key]
	return p, ok
}

// Has reports whether any row carries name.
func (c *Catalog) Has(name string) bool {
	for _, key := range c.order {
		if key.Name == name {
			return true
		}
	}
	return false
}

// Save replaces the row with the same key. Rows cannot be added after construction.
func (c *Catalog) Save(p Product) error {
	key := p.Key()
	if _, ok := c.rows[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProduct, p.Name)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: %q", ErrInsufficientStock, p.Name)
	}
	c.rows[key] = p
	return nil
}

// ListAll returns every row in load order.
func (c *Catalog) ListAll() []Product {
	out := make([]Product, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.rows[key])
	}
	return out
}

// Views renders the listing shown to shoppers. A product sold only under an active
// promotion is followed by an out-of-stock entry for its regular tier.
func (c *Catalog) Views() []ProductView {
	now := c.now()
	out := make([]ProductView, 0, len(c.order))
	for _, key := range c.order {
		row := c.rows[key]
		out = append(out, viewOf(row))
		if key.Promotion == "" {
			continue
		}
		promo, ok := c.promotions[key.Promotion]
		if !ok || !promo.ValidAt(now) {
			continue
		}
		if _, hasNormal := c.rows[Key{Name: key.Name}]; hasNormal {
			continue
		}
		out = append(out, ProductView{Name: row.Name, Price: row.Price, OutOfStock: true})
	}
	return out
}
