// Package health runs the rank worker's dependency probes concurrently and
// serves liveness and readiness endpoints. Required dependencies (the job
// consumer) take the worker down when they fail; optional result sinks only
// degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check is a function that probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registration struct {
	check    Check
	optional bool
}

// Checker manages registered health checks and runs them concurrently.
type Checker struct {
	checks map[string]registration
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]registration),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds a named check whose failure marks the whole report down.
func (c *Checker) Register(name string, check Check) {
	c.register(name, check, false)
}

// RegisterOptional adds a named check whose failure only degrades the report.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registration{check: check, optional: optional}
}

// Ping adapts an error-returning probe into a Check.
func Ping(fn func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := fn(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes all registered checks concurrently and returns an aggregated
// Report.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, reg := range checks {
		wg.Add(1)
		go func(n string, ch Check) {
			defer wg.Done()
			start := time.Now()
			result := ch(ctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[n] = result
			mu.Unlock()
		}(name, reg.check)
	}
	wg.Wait()

	for name, comp := range report.Components {
		if comp.Status == StatusUp {
			continue
		}
		c.logger.Warn("health check failing", "check", name, "status", comp.Status, "message", comp.Message)
		if comp.Status == StatusDown && !checks[name].optional {
			report.Status = StatusDown
		} else if report.Status == StatusUp {
			report.Status = StatusDegraded
		}
	}
	return report
}

// LiveHandler returns an HTTP handler for liveness probes.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		})
	}
}

// ReadyHandler returns an HTTP handler for readiness probes. A degraded
// worker still reports ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
