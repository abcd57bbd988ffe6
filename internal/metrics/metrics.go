// Package metrics counts catalog operations with Prometheus collectors.
//
// The collectors live on a private registry rather than the global default
// one, so every catalog instance (and every test) starts from zero.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "librarian"

// Operation labels.
const (
	OpAddBook       = "add_book"
	OpAddBorrower   = "add_borrower"
	OpSearchBooks   = "search_books"
	OpCheckoutBook  = "checkout_book"
	OpReturnBook    = "return_book"
	OpCalculateFine = "calculate_fine"
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics holds the catalog collectors.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	finesTotal prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "operations_total",
			Help:      "Catalog operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		finesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "fines_assessed_total",
			Help:      "Sum of all fine amounts reported, in currency units.",
		}),
	}
	m.registry.MustRegister(m.operations, m.finesTotal)
	return m
}

// Registry exposes the private registry, e.g. for an exporter.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe counts one operation with its outcome.
func (m *Metrics) Observe(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// AddFine accumulates a reported fine. Negative amounts (clock skew) are
// skipped since counters only go up.
func (m *Metrics) AddFine(amount float64) {
	if amount > 0 {
		m.finesTotal.Add(amount)
	}
}

// Summary gathers the registry into "name{labels}" -> value pairs, sorted by
// key. Used for the debug log line on exit.
func (m *Metrics) Summary() ([]string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	return lines, nil
}
