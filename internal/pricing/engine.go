package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Default membership terms.
var (
	DefaultMembershipRate = decimal.RequireFromString("0.30")
	DefaultMembershipCap  = Money(8000)
)

// ErrInvalidTerms is returned by Validate for a rate outside [0, 1] or a cap that is not positive.
var ErrInvalidTerms = errors.New("pricing: invalid membership terms")

// ErrNegativeTotal signals discounts exceeding the gross amount, which a correct allocation never produces.
var ErrNegativeTotal = errors.New("pricing: discounts exceed total amount")

// SettledLine is a paid portion of a purchase.
type SettledLine struct {
	ProductName     string `json:"name"`
	PaidQuantity    int    `json:"quantity"`
	UnitPrice       Money  `json:"unitPrice"`
	IsPromotionLine bool   `json:"promotion"`
}

// Amount is quantity times unit price.
func (l SettledLine) Amount() Money {
	return Money(l.PaidQuantity) * l.UnitPrice
}

// FreeLine records units granted at zero price.
type FreeLine struct {
	ProductName  string `json:"name"`
	FreeQuantity int    `json:"quantity"`
}

// Summary aggregates computed receipt amounts.
type Summary struct {
	Total              Money `json:"totalAmount"`
	PromotionDiscount  Money `json:"promotionDiscountAmount"`
	MembershipDiscount Money `json:"membershipDiscountAmount"`
	Final              Money `json:"finalAmount"`
}

// Calculator derives receipt amounts from settled lines.
type Calculator struct {
	MembershipRate decimal.Decimal
	MembershipCap  Money
}

// NewCalculator returns a calculator with the default membership terms.
func NewCalculator() Calculator {
	return Calculator{MembershipRate: DefaultMembershipRate, MembershipCap: DefaultMembershipCap}
}

// Validate checks the membership terms. A zero rate disables the discount; the cap is always enforced.
func (c Calculator) Validate() error {
	if c.MembershipRate.IsNegative() || c.MembershipRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: rate %s", ErrInvalidTerms, c.MembershipRate)
	}
	if c.MembershipCap <= 0 {
		return fmt.Errorf("%w: cap %d", ErrInvalidTerms, c.MembershipCap)
	}
	return nil
}

// Compute calculates the receipt amounts for the provided lines.
func (c Calculator) Compute(lines []SettledLine, free []FreeLine, membership bool) (Summary, error) {
	var total Money
	for _, l := range lines {
		total += l.Amount()
	}
	var promo Money
	for _, f := range free {
		promo += Money(f.FreeQuantity) * unitPriceOf(lines, f.ProductName)
	}
	var member Money
	if membership {
		member = c.MembershipDiscount(lines)
	}
	final := total - promo - member
	if final < 0 {
		return Summary{}, fmt.Errorf("%w: total %d, promotion %d, membership %d", ErrNegativeTotal, total, promo, member)
	}
	return Summary{Total: total, PromotionDiscount: promo, MembershipDiscount: member, Final: final}, nil
}

// MembershipDiscount applies the rate to amounts on lines that earned no free units,
// truncating toward zero, and caps the result.
func (c Calculator) MembershipDiscount(lines []SettledLine) Money {
	var base Money
	for _, l := range lines {
		if l.IsPromotionLine {
			continue
		}
		base += l.Amount()
	}
	if base <= 0 {
		return 0
	}
	rate := c.MembershipRate
	if rate.IsZero() || rate.IsNegative() {
		return 0
	}
	discount := decimal.NewFromInt(base).Mul(rate).Truncate(0).IntPart()
	return max(min(discount, c.MembershipCap), 0)
}

func unitPriceOf(lines []SettledLine, name string) Money {
	for _, l := range lines {
		if l.ProductName == name {
			return l.UnitPrice
		}
	}
	return 0
}

// Receipt is the immutable outcome of one settlement.
type Receipt struct {
	ID        string        `json:"id"`
	SettledAt time.Time     `json:"settledAt"`
	Items     []SettledLine `json:"items"`
	FreeItems []FreeLine    `json:"freeItems"`
	Summary
}

// Build computes the amounts and assembles a receipt. Lines are copied.
func (c Calculator) Build(lines []SettledLine, free []FreeLine, membership bool) (Receipt, error) {
	summary, err := c.Compute(lines, free, membership)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		Items:     append([]SettledLine(nil), lines...),
		FreeItems: append([]FreeLine(nil), free...),
		Summary:   summary,
	}, nil
}
