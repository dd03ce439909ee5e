package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/pricing"
	"github.com/noah-isme/toko-kasir/internal/settlement"
)

const (
	msgWelcome       = "안녕하세요. W편의점입니다.\n현재 보유하고 있는 상품입니다.\n"
	msgAskItems      = "\n구매하실 상품명과 수량을 입력해 주세요. (예: [사이다-2],[감자칩-1])"
	msgAskTopUp      = "\n현재 %s은(는) %d개를 무료로 더 받을 수 있습니다. 추가하시겠습니까? (Y/N)"
	msgAskFullPrice  = "\n현재 %s %d개는 프로모션 할인이 적용되지 않습니다. 그래도 구매하시겠습니까? (Y/N)"
	msgAskMembership = "\n멤버십 할인을 받으시겠습니까? (Y/N)"
	msgAskContinue   = "\n감사합니다. 구매하고 싶은 다른 상품이 있나요? (Y/N)"

	errFormat     = "[ERROR] 올바르지 않은 형식으로 입력했습니다. 다시 입력해 주세요."
	errUnknown    = "[ERROR] 존재하지 않는 상품입니다. 다시 입력해 주세요."
	errStock      = "[ERROR] 재고 수량을 초과하여 구매할 수 없습니다. 다시 입력해 주세요."
	errInput      = "[ERROR] 잘못된 입력입니다. 다시 입력해 주세요."
	errUnexpected = "[ERROR] 결제를 처리할 수 없습니다. 관리자에게 문의해 주세요."
)

var itemsPattern = regexp.MustCompile(`^\[([^\[\]\-,]+)-(\d+)\](?:,\[([^\[\]\-,]+)-(\d+)\])*$`)

var itemPattern = regexp.MustCompile(`\[([^\[\]\-,]+)-(\d+)\]`)

// Engine is the part of the settlement engine the console talks to.
type Engine interface {
	ListProducts() []catalog.ProductView
	CheckPromotionTopUp(name string, qty int) (int, bool, error)
	NonPromotableUnits(name string, qty int) (int, error)
	Settle(ctx context.Context, requests []settlement.LineRequest, membership bool) (pricing.Receipt, error)
}

// Console runs the shopper dialogue over a line-based reader and writer.
type Console struct {
	engine Engine
	in     *bufio.Scanner
	out    io.Writer
	logger zerolog.Logger
}

// New builds a console reading answers from in and printing to out.
func New(engine Engine, in io.Reader, out io.Writer, logger zerolog.Logger) *Console {
	return &Console{engine: engine, in: bufio.NewScanner(in), out: out, logger: logger}
}

// Run loops over purchases until the shopper declines to continue or input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := c.purchase(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (c *Console) purchase(ctx context.Context) (bool, error) {
	c.println(msgWelcome)
	c.printProducts()

	for {
		requests, err := c.askItems()
		if err != nil {
			return false, err
		}
		requests, err = c.confirmPromotions(requests)
		if err != nil {
			return false, err
		}
		if len(requests) == 0 {
			c.println(errInput)
			continue
		}
		membership, err := c.askYesNo(msgAskMembership)
		if err != nil {
			return false, err
		}
		receipt, err := c.engine.Settle(ctx, requests, membership)
		if err != nil {
			c.logger.Debug().Err(err).Msg("console settlement rejected")
			c.println(errorMessage(err))
			if errors.Is(err, catalog.ErrDataIntegrity) {
				return false, err
			}
			continue
		}
		c.printReceipt(receipt)
		return c.askYesNo(msgAskContinue)
	}
}

// askItems reads a purchase line until it parses.
func (c *Console) askItems() ([]settlement.LineRequest, error) {
	for {
		c.println(msgAskItems)
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		requests, err := ParseItems(line)
		if err != nil {
			c.println(errFormat)
			continue
		}
		return requests, nil
	}
}

// confirmPromotions offers the free top-up or warns about full-price units, line by line.
// A declined warning drops the full-price units from that line.
func (c *Console) confirmPromotions(requests []settlement.LineRequest) ([]settlement.LineRequest, error) {
	out := make([]settlement.LineRequest, 0, len(requests))
	for _, req := range requests {
		extra, ok, err := c.engine.CheckPromotionTopUp(req.ProductName, req.Quantity)
		if err != nil {
			return nil, err
		}
		if ok {
			yes, err := c.askYesNo(fmt.Sprintf(msgAskTopUp, req.ProductName, extra))
			if err != nil {
				return nil, err
			}
			if yes {
				req.Quantity += extra
			}
			out = append(out, req)
			continue
		}

		rest, err := c.engine.NonPromotableUnits(req.ProductName, req.Quantity)
		if err != nil {
			return nil, err
		}
		if rest > 0 {
			yes, err := c.askYesNo(fmt.Sprintf(msgAskFullPrice, req.ProductName, rest))
			if err != nil {
				return nil, err
			}
			if !yes {
				req.Quantity -= rest
			}
		}
		if req.Quantity > 0 {
			out = append(out, req)
		}
	}
	return out, nil
}

func (c *Console) askYesNo(prompt string) (bool, error) {
	for {
		c.println(prompt)
		line, err := c.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToUpper(line) {
		case "Y":
			return true, nil
		case "N":
			return false, nil
		}
		c.println(errInput)
	}
}

func (c *Console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

// ParseItems reads "[name-qty],[name-qty]" into line requests. Quantities must be positive.
func ParseItems(input string) ([]settlement.LineRequest, error) {
	input = strings.TrimSpace(input)
	if !itemsPattern.MatchString(input) {
		return nil, fmt.Errorf("%w: malformed item list %q", settlement.ErrInvalidRequest, input)
	}
	matches := itemPattern.FindAllStringSubmatch(input, -1)
	out := make([]settlement.LineRequest, 0, len(matches))
	for _, m := range matches {
		qty, err := strconv.Atoi(m[2])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: quantity for %q must be positive", settlement.ErrInvalidRequest, m[1])
		}
		out = append(out, settlement.LineRequest{ProductName: m[1], Quantity: qty})
	}
	return out, nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrUnknownProduct):
		return errUnknown
	case errors.Is(err, catalog.ErrInsufficientStock):
		return errStock
	case errors.Is(err, settlement.ErrInvalidRequest):
		return errInput
	default:
		return errUnexpected
	}
}
