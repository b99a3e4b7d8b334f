// Package metrics is the thin, import-cycle-free front door onto the
// Prometheus collectors in pkg/metrics/prometheus: callers ask for a
// domain's Metrics interface here, get a real collector if metrics
// were enabled and a nil (zero-overhead) one otherwise, modeled on
// the teacher's pkg/metrics/{s3,cache,nfs}.go split.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables metrics collection and returns the registry
// every collector registers itself against. Safe to call more than
// once; later calls return the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the shared registry, creating an unused one if
// metrics were never enabled (so stray callers never see a nil).
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}
