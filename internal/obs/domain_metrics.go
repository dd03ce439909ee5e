package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts settlement calls by result label.
	SettlementTotal *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	// SettlementFreeUnits counts units handed out free by promotions.
	SettlementFreeUnits prometheus.Counter
	// SettlementAmount sums receipt amounts by kind: total, promotion, membership, final.
	SettlementAmount *prometheus.CounterVec
	// StockDepletedTotal counts rows that reached zero, by pool (promotion or normal).
	StockDepletedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics creates the settlement collectors on first call. Callers that
// never register leave them nil and the engine skips observation.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_total",
			Help:      "Settlement calls by result.",
		}, []string{"result"}))
		SettlementDuration = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_ms",
			Help:      "Time spent inside the settlement critical section in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}))
		SettlementFreeUnits = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_free_units_total",
			Help:      "Units granted free of charge by promotions.",
		}))
		SettlementAmount = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_amount_total",
			Help:      "Receipt amounts in won by kind.",
		}, []string{"kind"}))
		StockDepletedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_depleted_total",
			Help:      "Catalog rows that ran out of stock by pool.",
		}, []string{"pool"}))
	})
}
