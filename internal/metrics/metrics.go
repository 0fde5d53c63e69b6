// Package metrics is a backend-agnostic metrics facade.
//
// Core code calls IncCounter/ObserveHistogram on the package-level backend.
// Binaries install a concrete backend (for example metrics/datadog) with
// SetBackend; until then every call is a no-op.
package metrics

import "sync"

// Metric names emitted by the PQP core.
const (
	// SectionsTotal counts part snapshots by source (store|configured|cached|guessed|none).
	SectionsTotal = "pqp_sections_total"
	// FetchErrorsTotal counts absorbed query failures by table.
	FetchErrorsTotal = "pqp_fetch_errors_total"
	// StoreWritesTotal counts JSON section store writes by op (ensure|put|merge|hydrate).
	StoreWritesTotal = "pqp_store_writes_total"
	// HydrateDurationSeconds observes orchestration time by stage.
	HydrateDurationSeconds = "pqp_hydrate_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to counter name.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample for histogram name.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the backend to submit buffered metrics.
func Flush() error {
	return current().Flush()
}
