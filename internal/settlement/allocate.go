package settlement

import (
	"fmt"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/pricing"
	"github.com/noah-isme/toko-kasir/internal/promotion"
)

// portion is a quantity drawn from a single catalog row.
type portion struct {
	row catalog.Product
	qty int
}

// allocation splits one line request across the promotional and normal pools.
type allocation struct {
	name     string
	portions []portion
	free     int
}

// resolve plans the allocation of req against the current catalog state without mutating it.
// Promotional stock is always drained first.
func resolve(c *catalog.Catalog, req LineRequest) (allocation, error) {
	out := allocation{name: req.ProductName}
	remaining := req.Quantity

	promoted, ok, err := c.FindPromotionRow(req.ProductName)
	if err != nil {
		return allocation{}, err
	}
	if ok {
		covered := min(remaining, promoted.Product.Quantity)
		if covered > 0 {
			out.portions = append(out.portions, portion{row: promoted.Product, qty: covered})
			out.free = promotion.FreeUnitsForCovered(promoted.Promotion, covered)
			remaining -= covered
		}
	}
	if remaining == 0 {
		return out, nil
	}

	normal, ok := c.FindNormalRow(req.ProductName)
	if !ok || normal.Quantity < remaining {
		return allocation{}, fmt.Errorf("%w: %q needs %d more from regular stock", catalog.ErrInsufficientStock, req.ProductName, remaining)
	}
	out.portions = append(out.portions, portion{row: normal, qty: remaining})
	return out, nil
}

// lines renders the paid portions, merging portions sold at the same unit price.
func (a allocation) lines() []pricing.SettledLine {
	out := make([]pricing.SettledLine, 0, len(a.portions))
	for _, p := range a.portions {
		merged := false
		for i := range out {
			if out[i].UnitPrice == p.row.Price {
				out[i].PaidQuantity += p.qty
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, pricing.SettledLine{
				ProductName:  a.name,
				PaidQuantity: p.qty,
				UnitPrice:    p.row.Price,
			})
		}
	}
	return out
}

// ledger records the rows touched by a settlement so they can be restored.
type ledger struct {
	original map[catalog.Key]catalog.Product
	order    []catalog.Key
}

func newLedger() *ledger {
	return &ledger{original: make(map[catalog.Key]catalog.Product)}
}

// apply debits every portion of a and saves the replacement rows.
func (l *ledger) apply(c *catalog.Catalog, a allocation) error {
	for _, p := range a.portions {
		next, err := p.row.Debit(p.qty)
		if err != nil {
			return err
		}
		key := p.row.Key()
		if _, seen := l.original[key]; !seen {
			l.original[key] = p.row
			l.order = append(l.order, key)
		}
		if err := c.Save(next); err != nil {
			return err
		}
	}
	return nil
}

// rollback restores every touched row to its pre-settlement value.
func (l *ledger) rollback(c *catalog.Catalog) {
	for _, key := range l.order {
		_ = c.Save(l.original[key])
	}
}

// depleted lists touched rows whose stock reached zero.
func (l *ledger) depleted(c *catalog.Catalog) []catalog.Product {
	var out []catalog.Product
	for _, key := range l.order {
		if row, ok := c.Get(key); ok && row.Quantity == 0 {
			out = append(out, row)
		}
	}
	return out
}
