package estimator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Default estimator settings.
const (
	DefaultMinDelay    = 1000 * time.Millisecond
	DefaultMaxDelay    = 2000 * time.Millisecond
	DefaultFailureRate = 0.05
	DefaultTopN        = 3
)

// Addresses used by Probe. They never collide case-insensitively.
const (
	probeFrom = "ecoroute probe origin"
	probeTo   = "ecoroute probe destination"
)

// Hooks receives estimator events. Any field may be nil.
type Hooks struct {
	// OnEstimate is called once per Estimate with its outcome.
	OnEstimate func(outcome string, elapsed time.Duration)

	// OnDelay is called with every sampled latency before it is waited out.
	OnDelay func(d time.Duration)

	// OnCache is called by CachedProvider on every lookup.
	OnCache func(hit bool)
}

func (h *Hooks) estimate(outcome string, elapsed time.Duration) {
	if h != nil && h.OnEstimate != nil {
		h.OnEstimate(outcome, elapsed)
	}
}

func (h *Hooks) delay(d time.Duration) {
	if h != nil && h.OnDelay != nil {
		h.OnDelay(d)
	}
}

func (h *Hooks) cache(hit bool) {
	if h != nil && h.OnCache != nil {
		h.OnCache(hit)
	}
}

// Options configures an Estimator.
type Options struct {
	// MinDelay and MaxDelay bound the simulated latency, sampled uniformly
	// in [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration

	// FailureRate is the probability of ErrTransientService per call.
	FailureRate float64

	// TopN is how many ranked candidates Estimate returns.
	TopN int

	// Rand is the source for delays and failures. Nil seeds one from the clock.
	Rand *rand.Rand

	// Sleep waits out the simulated latency. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Hooks *Hooks
}

// DefaultOptions returns the standard latency, failure and result settings.
func DefaultOptions() Options {
	return Options{
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
		FailureRate: DefaultFailureRate,
		TopN:        DefaultTopN,
	}
}

// Estimator validates address pairs, simulates an unreliable upstream, and
// ranks the candidates of its Provider. It is safe for concurrent use.
type Estimator struct {
	provider Provider
	opts     Options

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// New creates an Estimator over provider. A nil provider means
// SyntheticProvider.
func New(provider Provider, opts Options) *Estimator {
	if provider == nil {
		provider = SyntheticProvider{}
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	rnd := opts.Rand
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	return &Estimator{
		provider: provider,
		opts:     opts,
		rnd:      rnd,
	}
}

// TopN returns the number of candidates Estimate returns.
func (e *Estimator) TopN() int {
	return e.opts.TopN
}

// Estimate returns the best-scoring candidates between two addresses in
// ascending score order. Failures are terminal for the call and carry no
// partial result.
func (e *Estimator) Estimate(ctx context.Context, from, to string) ([]RouteCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "estimator.Estimate")
	defer span.End()

	start := time.Now()
	routes, err := e.estimate(ctx, from, to)
	outcome := Outcome(err)
	e.opts.Hooks.estimate(outcome, time.Since(start))

	span.SetAttributes(
		attribute.String(tracing.AttrEstimateOutcome, outcome),
		attribute.Int(tracing.AttrEstimateRoutes, len(routes)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return routes, err
}

func (e *Estimator) estimate(ctx context.Context, from, to string) ([]RouteCandidate, error) {
	delay, fail := e.roll()

	e.opts.Hooks.delay(delay)
	tracing.AddEvent(ctx, "simulated_delay",
		trace.WithAttributes(attribute.Int64(tracing.AttrEstimateDelayMs, delay.Milliseconds())),
	)
	if err := e.opts.Sleep(ctx, delay); err != nil {
		return nil, err
	}

	if fail {
		return nil, ErrTransientService
	}

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, ErrInvalidInput
	}
	if strings.EqualFold(from, to) {
		return nil, ErrDuplicateAddress
	}

	candidates, err := e.provider.Candidates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("route provider: %w", err)
	}

	return Rank(candidates, e.opts.TopN), nil
}

// roll samples the latency and the failure decision for one call.
func (e *Estimator) roll() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delay := e.opts.MinDelay
	if spread := e.opts.MaxDelay - e.opts.MinDelay; spread > 0 {
		delay += time.Duration(e.rnd.Int64N(int64(spread)))
	}
	if delay < 0 {
		delay = 0
	}

	var fail bool
	switch {
	case e.opts.FailureRate <= 0:
	case e.opts.FailureRate >= 1:
		fail = true
	default:
		fail = e.rnd.Float64() < e.opts.FailureRate
	}

	return delay, fail
}

// Probe checks that the provider can produce candidates. It skips the
// simulated latency and failure.
func (e *Estimator) Probe(ctx context.Context) error {
	candidates, err := e.provider.Candidates(ctx, probeFrom, probeTo)
	if err != nil {
		return fmt.Errorf("route provider probe: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("route provider probe: no candidates")
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
