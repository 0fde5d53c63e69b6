package metrics

import (
	"sync"
	"testing"
)

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushes  int
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name+"|"+labels["source"]] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[name] = append(r.samples[name], value)
}

func (r *recordingBackend) Flush() error {
	r.flushes++
	return nil
}

// Not parallel: mutates the package-level backend.
func TestSetBackendRoutesCalls(t *testing.T) {
	rb := &recordingBackend{counters: map[string]float64{}, samples: map[string][]float64{}}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(SectionsTotal, 1, Labels{"source": "guess"})
	IncCounter(SectionsTotal, 2, Labels{"source": "guess"})
	ObserveHistogram(HydrateDurationSeconds, 0.25, Labels{"stage": "form"})
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := rb.counters[SectionsTotal+"|guess"]; got != 3 {
		t.Fatalf("counter=%v, want 3", got)
	}
	if len(rb.samples[HydrateDurationSeconds]) != 1 || rb.flushes != 1 {
		t.Fatalf("samples=%v flushes=%d", rb.samples, rb.flushes)
	}

	SetBackend(nil)
	IncCounter(SectionsTotal, 1, Labels{"source": "guess"})
	if got := rb.counters[SectionsTotal+"|guess"]; got != 3 {
		t.Fatalf("nop backend should swallow calls, counter=%v", got)
	}
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
}
