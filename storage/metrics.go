package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timer_store_operations_total",
			Help: "Number of blob store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timer_store_operation_duration_seconds",
			Help:    "Blob store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

type instrumentedStore struct {
	next    BlobStore
	backend string
}

// WithMetrics оборачивает store счётчиками Prometheus.
func WithMetrics(next BlobStore, backend string) BlobStore {
	return &instrumentedStore{next: next, backend: backend}
}

func (s *instrumentedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	defer s.observe("put", time.Now())
	err := s.next.Put(ctx, key, data, contentType)
	s.count("put", err)
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer s.observe("get", time.Now())
	data, err := s.next.Get(ctx, key)
	s.count("get", err)
	return data, err
}

func (s *instrumentedStore) Match(ctx context.Context, pattern string, max int) ([]string, error) {
	defer s.observe("match", time.Now())
	keys, err := s.next.Match(ctx, pattern, max)
	s.count("match", err)
	return keys, err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	err := s.next.Ping(ctx)
	s.count("ping", err)
	return err
}

func (s *instrumentedStore) observe(op string, start time.Time) {
	storeOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) count(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	storeOperationsTotal.WithLabelValues(s.backend, op, result).Inc()
}
