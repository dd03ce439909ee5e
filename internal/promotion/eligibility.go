package promotion

import (
	"time"

	"github.com/noah-isme/toko-kasir/internal/catalog"
)

// Calculator answers promotion eligibility questions against a catalog.
type Calculator struct {
	Catalog *catalog.Catalog
}

// IsActive reports whether p covers the calendar day of now. Boundary days count as active.
func IsActive(p catalog.Promotion, now time.Time) bool {
	return p.ValidAt(now)
}

// MaxFreeUnits is the number of free units promotionQty earns under p, zero when p is inactive.
// It is an upper bound; allocation grants FreeUnitsForCovered, which counts whole buy+get sets only.
func MaxFreeUnits(p catalog.Promotion, promotionQty int, now time.Time) int {
	if !IsActive(p, now) || promotionQty <= 0 {
		return 0
	}
	return (promotionQty / p.BuyCount) * p.GetCount
}

// SetSize is buy+get, the promotional stock consumed per grant.
func SetSize(p catalog.Promotion) int {
	return p.SetSize()
}

// FreeUnitsForCovered counts free units for a quantity drawn from promotional stock.
// Only complete buy+get sets earn free units.
func FreeUnitsForCovered(p catalog.Promotion, covered int) int {
	if covered <= 0 {
		return 0
	}
	return (covered / p.SetSize()) * p.GetCount
}

// SuggestedTopUp returns the extra units the shopper may add for free when qty is exactly
// one buy block and promotional stock can hold the whole set.
func (c Calculator) SuggestedTopUp(name string, qty int) (int, bool, error) {
	row, ok, err := c.activeRow(name)
	if err != nil || !ok {
		return 0, false, err
	}
	promo := row.Promotion
	if qty != promo.BuyCount {
		return 0, false, nil
	}
	if row.Product.Quantity < qty+promo.GetCount {
		return 0, false, nil
	}
	return promo.GetCount, true, nil
}

// NonPromotableUnits is the part of qty that promotional stock cannot cover in whole sets.
func (c Calculator) NonPromotableUnits(name string, qty int) (int, error) {
	row, ok, err := c.activeRow(name)
	if err != nil || !ok {
		return 0, err
	}
	setSize := row.Promotion.SetSize()
	coverable := (row.Product.Quantity / setSize) * setSize
	rest := qty - coverable
	if rest < 0 {
		return 0, nil
	}
	return rest, nil
}

// FreeCount is the get count of the active promotion for name, or zero.
func (c Calculator) FreeCount(name string) (int, error) {
	row, ok, err := c.activeRow(name)
	if err != nil || !ok {
		return 0, err
	}
	return row.Promotion.GetCount, nil
}

func (c Calculator) activeRow(name string) (catalog.PromotedRow, bool, error) {
	if c.Catalog == nil {
		return catalog.PromotedRow{}, false, nil
	}
	return c.Catalog.FindPromotionRow(name)
}
