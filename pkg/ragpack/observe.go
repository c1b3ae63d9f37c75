package ragpack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result codes for calls that never produced a service error body.
const (
	codeOK        = "ok"
	codeCanceled  = "canceled"
	codeTransport = "transport"
)

// resultCode labels a finished call: "ok", the service error code of an
// APIError, "http_<status>" for an error response without a code, "canceled"
// for context cancellation, or "transport" for anything else.
func resultCode(err error) string {
	if err == nil {
		return codeOK
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			return apiErr.Code
		}
		return "http_" + strconv.Itoa(apiErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return codeCanceled
	}
	return codeTransport
}

type clientMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragpack",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Client calls by operation and result code.",
		}, []string{"operation", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragpack",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Client call latency by operation, including failed calls.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("ragpack: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("ragpack: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records one line and one sample per client call.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newClientMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	code := resultCode(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, code).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "code", code, "duration", dur}
	switch code {
	case codeOK:
		o.logger.Debug("ragpack call", attrs...)
	case codeCanceled:
		o.logger.Info("ragpack call canceled", append(attrs, "error", err)...)
	default:
		o.logger.Warn("ragpack call failed", append(attrs, "error", err)...)
	}
}
