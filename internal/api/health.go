package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/email-validator/internal/pkg/httputil"
)

const healthVersion = "1.0.0"

// CheckFunc reports whether one dependency is reachable.
type CheckFunc func(ctx context.Context) error

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker serves the liveness, readiness and summary endpoints.
type HealthChecker struct {
	environment string
	checks      map[string]CheckFunc
	startTime   time.Time
	now         func() time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(environment string) *HealthChecker {
	return &HealthChecker{
		environment: environment,
		checks:      make(map[string]CheckFunc),
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// AddCheck registers a dependency probed by /health/ready.
func (hc *HealthChecker) AddCheck(name string, fn CheckFunc) {
	hc.checks[name] = fn
}

// HandleHealth always answers 200 while the process is serving.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":      "OK",
		"timestamp":   hc.now().UTC().Format(time.RFC3339Nano),
		"version":     healthVersion,
		"environment": hc.environment,
	})
}

// HandleLiveness is a simple liveness probe.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "alive",
		"uptime": formatUptime(hc.now().Sub(hc.startTime)),
	})
}

// HandleReadiness returns 503 when any registered dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	ready := true
	for _, c := range checks {
		if c.Status != "up" {
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]ComponentCheck, len(hc.checks))
	)
	for name, fn := range hc.checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			c := runCheck(ctx, fn)
			mu.Lock()
			checks[name] = c
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return checks
}

// runCheck probes one dependency with a 3-second timeout.
func runCheck(ctx context.Context, fn CheckFunc) ComponentCheck {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := fn(checkCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
