package app

import (
	"context"
	"sync"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
)

// ComponentHealth is one component's probe result.
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// HealthProbe checks one component.
type HealthProbe interface {
	Check(ctx context.Context) ComponentHealth
}

// HealthChecker aggregates health probes for all components.
type HealthChecker struct {
	probes []HealthProbe
	mu     sync.RWMutex
}

// NewHealthChecker creates a health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		probes: make([]HealthProbe, 0),
	}
}

// RegisterProbe adds a health probe.
func (h *HealthChecker) RegisterProbe(probe HealthProbe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe)
}

// CheckAll returns health status for all components.
func (h *HealthChecker) CheckAll(ctx context.Context) []ComponentHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(h.probes))
	for _, probe := range h.probes {
		results = append(results, probe.Check(ctx))
	}
	return results
}

// Healthy reports whether every registered probe passed.
func (h *HealthChecker) Healthy(ctx context.Context) bool {
	for _, c := range h.CheckAll(ctx) {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// ThreadStoreProbe checks the thread store by listing a single thread.
type ThreadStoreProbe struct {
	store threadstore.Store
}

// NewThreadStoreProbe creates a thread store probe.
func NewThreadStoreProbe(store threadstore.Store) *ThreadStoreProbe {
	return &ThreadStoreProbe{store: store}
}

// Check returns the health status of the thread store.
func (p *ThreadStoreProbe) Check(ctx context.Context) ComponentHealth {
	if p.store == nil {
		return ComponentHealth{Name: "thread_store", Healthy: false, Detail: "not configured"}
	}
	if _, err := p.store.ListThreads(ctx, 1, 0); err != nil {
		return ComponentHealth{Name: "thread_store", Healthy: false, Detail: err.Error()}
	}
	return ComponentHealth{Name: "thread_store", Healthy: true}
}
