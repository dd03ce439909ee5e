package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/pricing"
)

func TestComputePromotionOnly(t *testing.T) {
	lines := []pricing.SettledLine{{ProductName: "콜라", PaidQuantity: 9, UnitPrice: 1000, IsPromotionLine: true}}
	free := []pricing.FreeLine{{ProductName: "콜라", FreeQuantity: 3}}

	s, err := pricing.NewCalculator().Compute(lines, free, false)
	require.NoError(t, err)
	require.Equal(t, pricing.Summary{Total: 9000, PromotionDiscount: 3000, MembershipDiscount: 0, Final: 6000}, s)
}

func TestComputeMembershipOnNormalLines(t *testing.T) {
	lines := []pricing.SettledLine{{ProductName: "물", PaidQuantity: 5, UnitPrice: 1000}}

	s, err := pricing.NewCalculator().Compute(lines, nil, true)
	require.NoError(t, err)
	require.Equal(t, pricing.Summary{Total: 5000, MembershipDiscount: 1500, Final: 3500}, s)
}

func TestMembershipExcludesPromotionLines(t *testing.T) {
	lines := []pricing.SettledLine{
		{ProductName: "콜라", PaidQuantity: 3, UnitPrice: 1000, IsPromotionLine: true},
		{ProductName: "에너지바", PaidQuantity: 5, UnitPrice: 2000},
	}
	free := []pricing.FreeLine{{ProductName: "콜라", FreeQuantity: 1}}

	s, err := pricing.NewCalculator().Compute(lines, free, true)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(13000), s.Total)
	require.Equal(t, pricing.Money(1000), s.PromotionDiscount)
	require.Equal(t, pricing.Money(3000), s.MembershipDiscount)
	require.Equal(t, pricing.Money(9000), s.Final)
}

func TestMembershipCapAndTruncation(t *testing.T) {
	calc := pricing.NewCalculator()

	capped := calc.MembershipDiscount([]pricing.SettledLine{{ProductName: "정식도시락", PaidQuantity: 8, UnitPrice: 6400}})
	require.Equal(t, pricing.Money(8000), capped)

	truncated := calc.MembershipDiscount([]pricing.SettledLine{{ProductName: "x", PaidQuantity: 1, UnitPrice: 1999}})
	require.Equal(t, pricing.Money(599), truncated, "599.7 truncates toward zero")

	require.Zero(t, calc.MembershipDiscount(nil))
}

func TestMembershipCustomTerms(t *testing.T) {
	calc := pricing.Calculator{MembershipRate: decimal.RequireFromString("0.1"), MembershipCap: 50000}
	got := calc.MembershipDiscount([]pricing.SettledLine{{ProductName: "x", PaidQuantity: 1, UnitPrice: 1_000_000}})
	require.Equal(t, pricing.Money(50000), got)

	off := pricing.Calculator{MembershipRate: decimal.Zero, MembershipCap: 8000}
	require.NoError(t, off.Validate())
	require.Zero(t, off.MembershipDiscount([]pricing.SettledLine{{ProductName: "x", PaidQuantity: 5, UnitPrice: 1000}}))
}

func TestMembershipCapNeverExceeded(t *testing.T) {
	lines := []pricing.SettledLine{{ProductName: "x", PaidQuantity: 10, UnitPrice: 10000}}

	uncapped := pricing.Calculator{MembershipRate: decimal.RequireFromString("0.30")}
	require.ErrorIs(t, uncapped.Validate(), pricing.ErrInvalidTerms)
	require.Zero(t, uncapped.MembershipDiscount(lines))

	s, err := pricing.NewCalculator().Compute(lines, nil, true)
	require.NoError(t, err)
	require.LessOrEqual(t, s.MembershipDiscount, pricing.Money(8000))
}

func TestValidateTerms(t *testing.T) {
	require.NoError(t, pricing.NewCalculator().Validate())

	for name, calc := range map[string]pricing.Calculator{
		"negative rate": {MembershipRate: decimal.RequireFromString("-0.1"), MembershipCap: 8000},
		"rate above one": {MembershipRate: decimal.RequireFromString("1.5"), MembershipCap: 8000},
		"negative cap":  {MembershipRate: decimal.RequireFromString("0.3"), MembershipCap: -1},
	} {
		require.ErrorIs(t, calc.Validate(), pricing.ErrInvalidTerms, name)
	}
}

func TestComputeRejectsNegativeFinal(t *testing.T) {
	lines := []pricing.SettledLine{{ProductName: "콜라", PaidQuantity: 1, UnitPrice: 1000}}
	free := []pricing.FreeLine{{ProductName: "콜라", FreeQuantity: 2}}

	_, err := pricing.NewCalculator().Compute(lines, free, false)
	require.ErrorIs(t, err, pricing.ErrNegativeTotal)
}

func TestBuildCopiesLines(t *testing.T) {
	lines := []pricing.SettledLine{{ProductName: "물", PaidQuantity: 2, UnitPrice: 500}}
	r, err := pricing.NewCalculator().Build(lines, nil, false)
	require.NoError(t, err)
	lines[0].PaidQuantity = 99
	require.Equal(t, 2, r.Items[0].PaidQuantity)
	require.Equal(t, r.Total-r.PromotionDiscount-r.MembershipDiscount, r.Final)
}
