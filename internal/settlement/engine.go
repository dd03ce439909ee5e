package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/events"
	"github.com/noah-isme/toko-kasir/internal/obs"
	"github.com/noah-isme/toko-kasir/internal/pricing"
	"github.com/noah-isme/toko-kasir/internal/promotion"
)

// ErrInvalidRequest is returned for empty purchases, non-positive quantities and unknown products.
var ErrInvalidRequest = errors.New("invalid purchase request")

// LineRequest asks for quantity units of one product.
type LineRequest struct {
	ProductName string `json:"name" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

// Publisher receives domain events for completed settlements.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Config wires an Engine.
type Config struct {
	Catalog *catalog.Catalog
	Pricing *pricing.Calculator // nil uses pricing.NewCalculator
	Events  Publisher
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Engine settles purchases against a catalog. Each call is one critical section, so a
// purchase validates and debits stock without interleaving with any other call.
type Engine struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	promos  promotion.Calculator
	pricing pricing.Calculator
	events  Publisher
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("settlement: catalog is required")
	}
	calc := pricing.NewCalculator()
	if cfg.Pricing != nil {
		if err := cfg.Pricing.Validate(); err != nil {
			return nil, fmt.Errorf("settlement: %w", err)
		}
		calc = *cfg.Pricing
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		catalog: cfg.Catalog,
		promos:  promotion.Calculator{Catalog: cfg.Catalog},
		pricing: calc,
		events:  cfg.Events,
		logger:  cfg.Logger,
		now:     now,
	}, nil
}

// ListProducts returns the shopper-facing product listing.
func (e *Engine) ListProducts() []catalog.ProductView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Views()
}

// CheckPromotionTopUp suggests extra free units the shopper could add to the line.
func (e *Engine) CheckPromotionTopUp(name string, qty int) (int, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promos.SuggestedTopUp(name, qty)
}

// NonPromotableUnits is the part of the line that will be billed without promotion benefit.
func (e *Engine) NonPromotableUnits(name string, qty int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promos.NonPromotableUnits(name, qty)
}

// PromotionFreeCount is the get count of the promotion currently active for name.
func (e *Engine) PromotionFreeCount(name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.promos.FreeCount(name)
}

// Settle validates every line, allocates stock in request order and returns the receipt.
// Nothing is debited unless every line is satisfiable.
func (e *Engine) Settle(ctx context.Context, requests []LineRequest, membership bool) (pricing.Receipt, error) {
	ctx, span := otel.Tracer("settlement.Engine").Start(ctx, "settlement.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.Int("settlement.lines", len(requests)),
		attribute.Bool("settlement.membership", membership),
	)
	start := time.Now()

	receipt, depleted, err := e.settle(requests, membership)
	observeSettlement(start, receipt, depleted, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn().Err(err).Int("lines", len(requests)).Msg("settlement rejected")
		return pricing.Receipt{}, err
	}
	span.SetAttributes(
		attribute.String("settlement.receipt_id", receipt.ID),
		attribute.Int64("settlement.final_amount", receipt.Final),
	)
	e.logger.Info().
		Str("receipt_id", receipt.ID).
		Int("lines", len(receipt.Items)).
		Int("free_lines", len(receipt.FreeItems)).
		Int64("total", receipt.Total).
		Int64("promotion_discount", receipt.PromotionDiscount).
		Int64("membership_discount", receipt.MembershipDiscount).
		Int64("final", receipt.Final).
		Msg("settlement completed")
	e.publish(ctx, receipt, depleted)
	return receipt, nil
}

func (e *Engine) settle(requests []LineRequest, membership bool) (pricing.Receipt, []catalog.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate(requests); err != nil {
		return pricing.Receipt{}, nil, err
	}

	book := newLedger()
	var (
		lines []pricing.SettledLine
		free  []pricing.FreeLine
	)
	for _, req := range requests {
		alloc, err := resolve(e.catalog, req)
		if err == nil {
			err = book.apply(e.catalog, alloc)
		}
		if err != nil {
			book.rollback(e.catalog)
			return pricing.Receipt{}, nil, err
		}
		lines = append(lines, alloc.lines()...)
		if alloc.free > 0 {
			free = append(free, pricing.FreeLine{ProductName: alloc.name, FreeQuantity: alloc.free})
		}
	}
	markPromotionLines(lines, free)

	receipt, err := e.pricing.Build(lines, free, membership)
	if err != nil {
		book.rollback(e.catalog)
		return pricing.Receipt{}, nil, err
	}
	receipt.ID = uuid.NewString()
	receipt.SettledAt = e.now().UTC()
	return receipt, book.depleted(e.catalog), nil
}

// validate checks the request shape and that combined stock covers every product.
// Quantities for repeated product names are summed.
func (e *Engine) validate(requests []LineRequest) error {
	if len(requests) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidRequest)
	}
	wanted := make(map[string]int, len(requests))
	order := make([]string, 0, len(requests))
	for _, req := range requests {
		name := req.ProductName
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: product name is required", ErrInvalidRequest)
		}
		if req.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %q must be positive", ErrInvalidRequest, name)
		}
		if !e.catalog.Has(name) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidRequest, catalog.ErrUnknownProduct, name)
		}
		if _, seen := wanted[name]; !seen {
			order = append(order, name)
		}
		wanted[name] += req.Quantity
	}
	for _, name := range order {
		available, err := e.available(name)
		if err != nil {
			return err
		}
		if available < wanted[name] {
			return fmt.Errorf("%w: %q has %d, requested %d", catalog.ErrInsufficientStock, name, available, wanted[name])
		}
	}
	return nil
}

func (e *Engine) available(name string) (int, error) {
	var total int
	promoted, ok, err := e.catalog.FindPromotionRow(name)
	if err != nil {
		return 0, err
	}
	if ok {
		total += promoted.Product.Quantity
	}
	if normal, ok := e.catalog.FindNormalRow(name); ok {
		total += normal.Quantity
	}
	return total, nil
}

// markPromotionLines flags every paid line whose product also earned free units.
func markPromotionLines(lines []pricing.SettledLine, free []pricing.FreeLine) {
	granted := make(map[string]bool, len(free))
	for _, f := range free {
		granted[f.ProductName] = true
	}
	for i := range lines {
		if granted[lines[i].ProductName] {
			lines[i].IsPromotionLine = true
		}
	}
}

func (e *Engine) publish(ctx context.Context, receipt pricing.Receipt, depleted []catalog.Product) {
	if e.events == nil {
		return
	}
	if _, err := e.events.Emit(ctx, events.TopicSettlementCompleted, receipt.ID, receipt); err != nil {
		e.logger.Error().Err(err).Str("receipt_id", receipt.ID).Msg("emit settlement event")
	}
	for _, row := range depleted {
		payload := map[string]any{"name": row.Name, "promotion": row.PromotionName, "receiptId": receipt.ID}
		if _, err := e.events.Emit(ctx, events.TopicStockDepleted, row.Name, payload); err != nil {
			e.logger.Error().Err(err).Str("product", row.Name).Msg("emit stock event")
		}
	}
}

func observeSettlement(start time.Time, receipt pricing.Receipt, depleted []catalog.Product, err error) {
	if obs.SettlementTotal == nil {
		return
	}
	obs.SettlementDuration.Observe(obs.DurationMillis(time.Since(start)))
	if err != nil {
		obs.SettlementTotal.WithLabelValues(resultLabel(err)).Inc()
		return
	}
	obs.SettlementTotal.WithLabelValues("ok").Inc()
	for _, f := range receipt.FreeItems {
		obs.SettlementFreeUnits.Add(float64(f.FreeQuantity))
	}
	obs.SettlementAmount.WithLabelValues("total").Add(float64(receipt.Total))
	obs.SettlementAmount.WithLabelValues("promotion").Add(float64(receipt.PromotionDiscount))
	obs.SettlementAmount.WithLabelValues("membership").Add(float64(receipt.MembershipDiscount))
	obs.SettlementAmount.WithLabelValues("final").Add(float64(receipt.Final))
	for _, row := range depleted {
		pool := "normal"
		if row.HasPromotion() {
			pool = "promotion"
		}
		obs.StockDepletedTotal.WithLabelValues(pool).Inc()
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, catalog.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, catalog.ErrDataIntegrity):
		return "data_integrity"
	default:
		return "error"
	}
}
