// Package metrics is the backend-neutral metrics facade used by the sniffer
// and its outer layers.
//
// Code records metrics through the package-level helpers; the process picks
// a concrete Backend once at startup with SetBackend. Until then every call
// is a no-op, so libraries and tests never need a metrics system.
package metrics

import "sync"

// Metric names. Backends translate these into their own naming scheme.
const (
	// SniffTotal counts sniff runs, labeled by status.
	SniffTotal = "sniff_total"
	// SniffDurationSeconds observes wall time per sniff, labeled by status.
	SniffDurationSeconds = "sniff_duration_seconds"
	// SniffSampleBytes observes the size of each extracted sample.
	SniffSampleBytes = "sniff_sample_bytes"
	// CatalogSavesTotal counts catalog writes, labeled by backend and status.
	CatalogSavesTotal = "catalog_saves_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
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

// Nop returns a Backend that discards everything.
func Nop() Backend { return nopBackend{} }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Current returns the process-wide backend.
func Current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter records delta on the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	Current().IncCounter(name, delta, labels)
}

// ObserveHistogram records value on the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	Current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend.
func Flush() error { return Current().Flush() }
