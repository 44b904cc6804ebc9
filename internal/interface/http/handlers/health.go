package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH REGISTRY
// The bridge endpoints need only Postgres. Redis, the Primary Backend and the
// link-code sweep serve the bot and may fail without taking the service down.
// ══════════════════════════════════════════════════════════════════════════════

// Severity decides how a failing check affects the overall status.
type Severity int

const (
	// Critical failures turn /health into a 503.
	Critical Severity = iota
	// Degraded failures are reported but /health stays 200.
	Degraded
)

// Overall statuses reported by /health.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// DefaultCheckTimeout bounds each check when no timeout is configured.
const DefaultCheckTimeout = 3 * time.Second

// HealthCheckFunc returns nil when the dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker produces the /health report.
type HealthChecker interface {
	Report(ctx context.Context) HealthReport
}

// HealthReport is the /health body.
type HealthReport struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Healthy is false only when a critical check failed.
func (r HealthReport) Healthy() bool {
	return r.Status != StatusDown
}

// CheckResult is one dependency in the report.
type CheckResult struct {
	OK       bool   `json:"ok"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type registeredCheck struct {
	name     string
	severity Severity
	fn       HealthCheckFunc
}

// HealthRegistry runs registered checks concurrently, each under its own timeout.
type HealthRegistry struct {
	version string
	timeout time.Duration
	started time.Time

	mu     sync.RWMutex
	checks []registeredCheck
}

// NewHealthRegistry creates a registry. timeout <= 0 uses DefaultCheckTimeout.
func NewHealthRegistry(version string, timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &HealthRegistry{
		version: version,
		timeout: timeout,
		started: time.Now(),
	}
}

// Register adds a check. A second check with the same name replaces the first.
func (r *HealthRegistry) Register(name string, severity Severity, fn HealthCheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.checks {
		if r.checks[i].name == name {
			r.checks[i] = registeredCheck{name, severity, fn}
			return
		}
	}
	r.checks = append(r.checks, registeredCheck{name, severity, fn})
}

// Names returns the registered check names in sorted order.
func (r *HealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checks))
	for _, c := range r.checks {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

// Report runs every check and folds the results into one status.
func (r *HealthRegistry) Report(ctx context.Context) HealthReport {
	r.mu.RLock()
	checks := append([]registeredCheck(nil), r.checks...)
	r.mu.RUnlock()

	report := HealthReport{
		Status:    StatusOK,
		Version:   r.version,
		Uptime:    time.Since(r.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, c := range checks {
		wg.Add(1)
		go func(c registeredCheck) {
			defer wg.Done()
			res := r.run(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[c.name] = res
			if res.OK {
				return
			}
			if c.severity == Critical {
				report.Status = StatusDown
			} else if report.Status == StatusOK {
				report.Status = StatusDegraded
			}
		}(c)
	}
	wg.Wait()

	return report
}

func (r *HealthRegistry) run(ctx context.Context, c registeredCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := c.fn(ctx)

	res := CheckResult{
		OK:       err == nil,
		Critical: c.severity == Critical,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is the Postgres pool or the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Health serves GET /health: 503 when a critical check fails, 200 otherwise.
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Report(r.Context())
		code := http.StatusOK
		if !report.Healthy() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

// Live serves GET /live. It never touches dependencies.
func Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
