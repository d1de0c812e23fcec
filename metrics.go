package websession

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics holds Prometheus metrics for store operations.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates the metrics and registers them with reg.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_store_operations_total",
				Help: "Total number of session store operations",
			},
			[]string{"driver", "op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "session_store_operation_duration_seconds",
				Help:    "Duration of session store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"driver", "op"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

// Instrument wraps store so that every operation is counted and timed.
func (m *StoreMetrics) Instrument(driver string, store Store) Store {
	return &instrumentedStore{Store: store, driver: driver, metrics: m}
}

// Instrumented wraps every factory of r with m under its driver name.
func (m *StoreMetrics) Instrumented(r *Registry) *Registry {
	out := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, factory := range r.factories {
		out.factories[name] = func(settings ConfigReader) (Store, error) {
			store, err := factory(settings)
			if err != nil {
				return nil, err
			}
			return m.Instrument(name, store), nil
		}
	}
	return out
}

func (m *StoreMetrics) observe(driver, op string, start time.Time, ok bool) {
	result := "ok"
	if !ok {
		result = "miss"
		if op != "read" {
			result = "error"
		}
	}
	m.operations.WithLabelValues(driver, op, result).Inc()
	m.duration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}

type instrumentedStore struct {
	Store
	driver  string
	metrics *StoreMetrics
}

func (s *instrumentedStore) Save(ctx context.Context, session *Session) bool {
	start := time.Now()
	ok := s.Store.Save(ctx, session)
	s.metrics.observe(s.driver, "save", start, ok)
	return ok
}

func (s *instrumentedStore) Read(ctx context.Context, id string) *Session {
	start := time.Now()
	session := s.Store.Read(ctx, id)
	s.metrics.observe(s.driver, "read", start, session != nil)
	return session
}

func (s *instrumentedStore) Remove(ctx context.Context, id string) bool {
	start := time.Now()
	ok := s.Store.Remove(ctx, id)
	s.metrics.observe(s.driver, "remove", start, ok)
	return ok
}

func (s *instrumentedStore) Clear(ctx context.Context) bool {
	start := time.Now()
	ok := s.Store.Clear(ctx)
	s.metrics.observe(s.driver, "clear", start, ok)
	return ok
}
