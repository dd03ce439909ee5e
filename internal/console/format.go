package console

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/pricing"
)

var won = message.NewPrinter(language.Korean)

func (c *Console) printProducts() {
	for _, v := range c.engine.ListProducts() {
		c.println(FormatProduct(v))
	}
}

// FormatProduct renders one listing row, e.g. "- 콜라 1,000원 10개 탄산2+1".
func FormatProduct(v catalog.ProductView) string {
	stock := "재고 없음"
	if !v.OutOfStock && v.Quantity > 0 {
		stock = won.Sprintf("%d개", v.Quantity)
	}
	line := won.Sprintf("- %s %d원 %s", v.Name, v.Price, stock)
	if v.Promotion != nil {
		line += " " + *v.Promotion
	}
	return line
}

func (c *Console) printReceipt(r pricing.Receipt) {
	c.println(FormatReceipt(r))
}

// FormatReceipt renders the printed receipt.
func FormatReceipt(r pricing.Receipt) string {
	var b strings.Builder
	b.WriteString("==============W 편의점================\n")
	b.WriteString(won.Sprintf("%-10s\t%6s\t%10s\n", "상품명", "수량", "금액"))
	for _, l := range r.Items {
		b.WriteString(won.Sprintf("%-10s\t%6d\t%10d\n", l.ProductName, l.PaidQuantity, l.Amount()))
	}
	if len(r.FreeItems) > 0 {
		b.WriteString("=============증\t정===============\n")
		for _, f := range r.FreeItems {
			b.WriteString(won.Sprintf("%-10s\t%6d\n", f.ProductName, f.FreeQuantity))
		}
	}
	b.WriteString("====================================\n")
	b.WriteString(won.Sprintf("%-10s\t%6d\t%10d\n", "총구매액", paidUnits(r), r.Total))
	b.WriteString(won.Sprintf("%-10s\t\t%10s\n", "행사할인", discount(r.PromotionDiscount)))
	b.WriteString(won.Sprintf("%-10s\t\t%10s\n", "멤버십할인", discount(r.MembershipDiscount)))
	b.WriteString(won.Sprintf("%-10s\t\t%10d", "내실돈", r.Final))
	return b.String()
}

func paidUnits(r pricing.Receipt) int {
	var n int
	for _, l := range r.Items {
		n += l.PaidQuantity
	}
	return n
}

func discount(amount pricing.Money) string {
	return won.Sprintf("-%d", amount)
}
