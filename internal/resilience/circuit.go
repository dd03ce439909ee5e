package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses an outbound call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State of a Breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// gauge is the value exported on BreakerState.
func (s State) gauge() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	}
	return -1
}

// Breaker trips open once at least minCalls outcomes have been seen in the closed state
// and the failure share reaches ratio. After cooloff one probe is let through: success
// closes the breaker, failure opens it again.
type Breaker struct {
	minCalls int
	ratio    float64
	cooloff  time.Duration

	mu       sync.Mutex
	state    State
	ok, fail int
	openedAt time.Time
	target   string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBreaker builds a closed breaker. Out-of-range arguments fall back to 1 call, a 0.5
// ratio and a 30s cool-off.
func NewBreaker(minCalls int, ratio float64, cooloff time.Duration) *Breaker {
	if minCalls < 1 {
		minCalls = 1
	}
	if ratio <= 0 {
		ratio = 0.5
	}
	if cooloff <= 0 {
		cooloff = 30 * time.Second
	}
	return &Breaker{
		minCalls: minCalls,
		ratio:    min(ratio, 1),
		cooloff:  cooloff,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// WithTarget names the guarded dependency for metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	BreakerState.WithLabelValues(b.label()).Set(b.state.gauge())
	return b
}

// WithLogger sets the logger used when no logger travels on the context.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// Allow reports whether a call may go out now.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cooloff {
		return false
	}
	b.moveLocked(ctx, HalfOpen)
	return true
}

// Report records the outcome of a call that Allow let through.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if success {
		b.ok++
	} else {
		b.fail++
	}
	calls := b.ok + b.fail
	if calls < b.minCalls {
		return
	}
	if float64(b.fail)/float64(calls) >= b.ratio {
		b.moveLocked(ctx, Open)
		return
	}
	// Halve the window so old successes do not mask a new run of failures.
	if calls > 2*b.minCalls {
		b.ok = (b.ok + 1) / 2
		b.fail = (b.fail + 1) / 2
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Target returns the metrics label of the guarded dependency.
func (b *Breaker) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label()
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.ok, b.fail = 0, 0
	if next == Open {
		b.openedAt = b.now()
	}

	label := b.label()
	BreakerState.WithLabelValues(label).Set(next.gauge())
	if prev == next {
		return
	}
	BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	if next == Open {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	logger := b.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Warn()
	if next == Closed {
		evt = logger.Info()
	}
	evt = evt.Str("target", label).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	if next == Open {
		evt = evt.Dur("open_for", b.cooloff)
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// Backoff doubles base per attempt, starting from attempt 1. jitterPct spreads the result
// by up to that fraction in either direction.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << (max(attempt, 1) - 1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
