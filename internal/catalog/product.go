package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInsufficientStock is returned when a debit exceeds the stock of a row or of both pools.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDataIntegrity indicates a product row references a promotion that does not exist.
	ErrDataIntegrity = errors.New("promotion referenced by product not found")
	// ErrUnknownProduct is returned when no catalog row carries the requested name.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidProduct is returned when a product or promotion row violates its value constraints.
	ErrInvalidProduct = errors.New("invalid catalog row")
)

// DateLayout is the calendar date format used by promotion tables.
const DateLayout = "2006-01-02"

// Promotion describes a buy-N-get-M offer valid over an inclusive range of calendar days.
type Promotion struct {
	Name      string
	BuyCount  int
	GetCount  int
	StartDate time.Time
	EndDate   time.Time
}

// NewPromotion validates and constructs a Promotion. Start and end are truncated to calendar days.
func NewPromotion(name string, buy, get int, start, end time.Time) (Promotion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Promotion{}, fmt.Errorf("%w: promotion name is required", ErrInvalidProduct)
	}
	if buy <= 0 {
		return Promotion{}, fmt.Errorf("%w: promotion %q buy count must be positive", ErrInvalidProduct, name)
	}
	if get <= 0 {
		return Promotion{}, fmt.Errorf("%w: promotion %q get count must be positive", ErrInvalidProduct, name)
	}
	start, end = CalendarDay(start), CalendarDay(end)
	if start.After(end) {
		return Promotion{}, fmt.Errorf("%w: promotion %q starts after it ends", ErrInvalidProduct, name)
	}
	return Promotion{Name: name, BuyCount: buy, GetCount: get, StartDate: start, EndDate: end}, nil
}

// ValidAt reports whether the promotion covers the calendar day of t. Both ends are inclusive.
func (p Promotion) ValidAt(t time.Time) bool {
	day := CalendarDay(t)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// SetSize is the block of promotional stock consumed per grant of free units.
func (p Promotion) SetSize() int {
	return p.BuyCount + p.GetCount
}

// CalendarDay drops the clock part of t, keeping the year, month and day as seen in t's location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Product is an immutable catalog row. A nil PromotionName marks the normal row of a product.
type Product struct {
	Name          string
	Price         int64
	Quantity      int
	PromotionName *string
}

// NewProduct validates and constructs a Product.
func NewProduct(name string, price int64, quantity int, promotion *string) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrInvalidProduct)
	}
	if price <= 0 {
		return Product{}, fmt.Errorf("%w: product %q price must be positive", ErrInvalidProduct, name)
	}
	if quantity < 0 {
		return Product{}, fmt.Errorf("%w: product %q quantity must not be negative", ErrInvalidProduct, name)
	}
	if promotion != nil {
		trimmed := strings.TrimSpace(*promotion)
		if trimmed == "" {
			promotion = nil
		} else {
			promotion = &trimmed
		}
	}
	return Product{Name: name, Price: price, Quantity: quantity, PromotionName: promotion}, nil
}

// Key identifies the row within the catalog.
func (p Product) Key() Key {
	if p.PromotionName == nil {
		return Key{Name: p.Name}
	}
	return Key{Name: p.Name, Promotion: *p.PromotionName}
}

// HasPromotion reports whether the row is linked to a promotion.
func (p Product) HasPromotion() bool {
	return p.PromotionName != nil
}

// Debit returns a copy of the row with n fewer units. The receiver is never modified.
func (p Product) Debit(n int) (Product, error) {
	if n < 0 {
		return Product{}, fmt.Errorf("%w: negative debit %d for %q", ErrInvalidProduct, n, p.Name)
	}
	if n > p.Quantity {
		return Product{}, fmt.Errorf("%w: %q has %d, requested %d", ErrInsufficientStock, p.Name, p.Quantity, n)
	}
	next := p
	next.Quantity = p.Quantity - n
	return next, nil
}

// Key is the (name, promotion) identity of a catalog row. Promotion is empty for normal rows.
type Key struct {
	Name      string
	Promotion string
}

// ProductView is the display shape of a catalog row.
type ProductView struct {
	Name       string  `json:"name"`
	Price      int64   `json:"price"`
	Quantity   int     `json:"quantity"`
	Promotion  *string `json:"promotion,omitempty"`
	OutOfStock bool    `json:"outOfStock"`
}

func viewOf(p Product) ProductView {
	return ProductView{
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   p.Quantity,
		Promotion:  p.PromotionName,
		OutOfStock: p.Quantity == 0,
	}
}
