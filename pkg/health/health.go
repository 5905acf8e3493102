// Package health serves liveness and readiness probes.
//
// Checks run in the background on a fixed interval and are reported by the
// /livez and /readyz endpoints. A check turns unhealthy only after it has
// failed FailureThreshold times in a row and recovers on the first success.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// DefaultFailureThreshold is the number of consecutive failures that mark a
// check unhealthy.
const DefaultFailureThreshold = 3

type check struct {
	name    string
	probe   Probe
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	healthy bool
	fails   int
	lastErr error
}

func (c *check) run(ctx context.Context, threshold int) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err == nil {
		c.fails = 0
		c.healthy = true
		return
	}
	c.fails++
	if c.fails >= threshold {
		c.healthy = false
	}
}

// status returns "" for a healthy check and the failure reason otherwise.
func (c *check) status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		return ""
	}
	if c.lastErr != nil {
		return c.lastErr.Error()
	}
	return "check is unhealthy"
}

// Option configures Health.
type Option func(*Health)

// WithFailureThreshold overrides DefaultFailureThreshold.
func WithFailureThreshold(n int) Option {
	return func(h *Health) {
		if n > 0 {
			h.threshold = n
		}
	}
}

// Health tracks probe state for one process. The zero readiness state is
// "not ready": call SetReady(true) once initialization has finished.
type Health struct {
	ready     atomic.Bool
	threshold int

	mu     sync.Mutex
	checks []*check
	cancel context.CancelFunc
}

// New returns a Health with no checks.
func New(opts ...Option) *Health {
	h := &Health{threshold: DefaultFailureThreshold}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add registers a check. Checks start healthy and must be added before Start.
func (h *Health) Add(probe Probe, name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, &check{
		name:    name,
		probe:   probe,
		timeout: timeout,
		fn:      fn,
		healthy: true,
	})
}

// AddLivenessCheck is Add(Liveness, ...).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Liveness, name, timeout, fn)
}

// AddReadinessCheck is Add(Readiness, ...).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Readiness, name, timeout, fn)
}

// Start runs every check immediately and then once per interval until Stop
// is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx, h.threshold)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(probe Probe) map[string]string {
	h.mu.Lock()
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	failures := make(map[string]string)
	for _, c := range checks {
		if c.probe != probe {
			continue
		}
		if reason := c.status(); reason != "" {
			failures[c.name] = reason
		}
	}
	return failures
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus writes {"status":"ok"} or 503 with
// {"status":"unhealthy","checks":{name: reason}}.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
