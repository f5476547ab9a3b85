package main

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Telemetry receives named events and exceptions. Implementations must not
// block the request or report their own failures to the caller.
type Telemetry interface {
	TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64)
	TrackException(ctx context.Context, err error)
}

// NopTelemetry drops everything.
type NopTelemetry struct{}

func (NopTelemetry) TrackEvent(context.Context, string, map[string]string, map[string]float64) {}
func (NopTelemetry) TrackException(context.Context, error)                                     {}

// multiTelemetry fans out to every sink and recovers sink panics.
type multiTelemetry []Telemetry

func NewTelemetry(sinks ...Telemetry) Telemetry {
	return multiTelemetry(sinks)
}

func (m multiTelemetry) TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64) {
	for _, s := range m {
		guard(name, func() { s.TrackEvent(ctx, name, props, metrics) })
	}
}

func (m multiTelemetry) TrackException(ctx context.Context, err error) {
	for _, s := range m {
		guard("exception", func() { s.TrackException(ctx, err) })
	}
}

func guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("event", name).Warnf("telemetry sink panicked: %v", r)
		}
	}()
	fn()
}

// SentryTelemetry records events as breadcrumbs on the request hub and sends
// exceptions as Sentry events.
type SentryTelemetry struct {
	hub *sentry.Hub
}

func NewSentryTelemetry(hub *sentry.Hub) *SentryTelemetry {
	return &SentryTelemetry{hub: hub}
}

func (s *SentryTelemetry) hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return s.hub
}

func (s *SentryTelemetry) TrackEvent(ctx context.Context, name string, props map[string]string, metrics map[string]float64) {
	data := make(map[string]interface{}, len(props)+len(metrics))
	for k, v := range props {
		data[k] = v
	}
	for k, v := range metrics {
		data[k] = v
	}
	s.hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category: "todo",
		Message:  name,
		Data:     data,
		Level:    sentry.LevelInfo,
	}, nil)
}

// TrackException skips errors caused by the request itself.
func (s *SentryTelemetry) TrackException(ctx context.Context, err error) {
	if isClientError(err) {
		return
	}
	s.hubFor(ctx).CaptureException(err)
}

// PrometheusTelemetry turns the processingTime metric of each event into a
// histogram observation labelled by operation.
type PrometheusTelemetry struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func NewPrometheusTelemetry(reg prometheus.Registerer) (*PrometheusTelemetry, error) {
	p := &PrometheusTelemetry{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todo_operation_duration_milliseconds",
			Help:    "Processing time of todo operations.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_operation_errors_total",
			Help: "Failed todo operations by error kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{p.duration, p.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusTelemetry) TrackEvent(_ context.Context, name string, _ map[string]string, metrics map[string]float64) {
	if ms, ok := metrics["processingTime"]; ok {
		p.duration.WithLabelValues(name).Observe(ms)
	}
}

func (p *PrometheusTelemetry) TrackException(_ context.Context, err error) {
	p.errors.WithLabelValues(errorKind(err)).Inc()
}

// errorKind names the sentinel an error wraps.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSerialization):
		return "serialization"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
