package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HealthStatus is the state reported by a component or aggregated for a
// service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of an individual component.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth describes the overall health of a service and its components.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by components that report their own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// NewServiceHealth starts an aggregate that is up until a component
// reports otherwise.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Version: version, Status: HealthStatusUp}
}

// severity orders statuses from healthy to failed.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUp:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// AddComponent appends h. The service status becomes the worst status seen.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if h.Status.severity() > sh.Status.severity() {
		sh.Status = h.Status
	}
}

// CheckHealth runs the checkers concurrently and aggregates the results in
// key order. A result without a name takes its key; a checker that panics
// is reported down.
func CheckHealth(ctx context.Context, service, version string, checkers map[string]HealthChecker) *ServiceHealth {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Health, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check(ctx, name, checkers[name])
		}()
	}
	wg.Wait()

	sh := NewServiceHealth(service, version)
	for _, h := range results {
		sh.AddComponent(h)
	}
	return sh
}

func check(ctx context.Context, name string, c HealthChecker) (h Health) {
	defer func() {
		if r := recover(); r != nil {
			h = Health{Name: name, Status: HealthStatusDown, Message: fmt.Sprintf("health check panicked: %v", r)}
		}
	}()
	h = c.CheckHealth(ctx)
	if h.Name == "" {
		h.Name = name
	}
	return h
}
