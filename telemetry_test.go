package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "none", errorKind(nil))
	assert.Equal(t, "not_found", errorKind(ErrNotFound))
	assert.Equal(t, "validation", errorKind(fmt.Errorf("%w: title is required", ErrValidation)))
	assert.Equal(t, "serialization", errorKind(fmt.Errorf("%w: EOF", ErrSerialization)))
	assert.Equal(t, "persistence", errorKind(fmt.Errorf("%w: timeout", ErrPersistence)))
	assert.Equal(t, "unknown", errorKind(errors.New("boom")))
}

func TestPrometheusTelemetry(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheusTelemetry(reg)
	require.NoError(t, err)
	ctx := context.Background()

	p.TrackEvent(ctx, "create-todo", nil, map[string]float64{"processingTime": 3.5})
	p.TrackEvent(ctx, "get-todo", nil, map[string]float64{"processingTime": 1})
	p.TrackEvent(ctx, "get-todo", nil, nil)
	assert.Equal(t, 2, testutil.CollectAndCount(p.duration))

	p.TrackException(ctx, ErrNotFound)
	p.TrackException(ctx, fmt.Errorf("%w: down", ErrPersistence))
	p.TrackException(ctx, fmt.Errorf("%w: down again", ErrPersistence))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.errors.WithLabelValues("not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.errors.WithLabelValues("persistence")))

	_, err = NewPrometheusTelemetry(reg)
	assert.Error(t, err, "registering twice on one registry fails")
}

func TestSentryTelemetry(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())
	s := NewSentryTelemetry(hub)
	ctx := context.Background()

	s.TrackEvent(ctx, "create-todo", map[string]string{"todo-id": "1"}, map[string]float64{"processingTime": 2})
	s.TrackException(ctx, errors.New("table unavailable"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "table unavailable", events[0].Exception[0].Value)
	require.Len(t, events[0].Breadcrumbs, 1)
	assert.Equal(t, "create-todo", events[0].Breadcrumbs[0].Message)
	assert.Equal(t, "1", events[0].Breadcrumbs[0].Data["todo-id"])
}

func TestSentryTelemetry_SkipsClientErrors(t *testing.T) {
	var captured []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			captured = append(captured, event)
			return nil
		},
	})
	require.NoError(t, err)
	s := NewSentryTelemetry(sentry.NewHub(client, sentry.NewScope()))
	ctx := context.Background()

	s.TrackException(ctx, ErrNotFound)
	s.TrackException(ctx, fmt.Errorf("%w: title is required", ErrValidation))
	s.TrackException(ctx, fmt.Errorf("%w: EOF", ErrSerialization))
	assert.Empty(t, captured)

	s.TrackException(ctx, fmt.Errorf("%w: timeout", ErrPersistence))
	assert.Len(t, captured, 1)
}

func TestSentryTelemetry_PrefersRequestHub(t *testing.T) {
	fallback := sentry.NewHub(nil, sentry.NewScope())
	reqHub := sentry.NewHub(nil, sentry.NewScope())
	s := NewSentryTelemetry(fallback)

	ctx := sentry.SetHubOnContext(context.Background(), reqHub)
	assert.Same(t, reqHub, s.hubFor(ctx))
	assert.Same(t, fallback, s.hubFor(context.Background()))
}

func TestMultiTelemetry_FansOutAndRecovers(t *testing.T) {
	a, b := &recordingTelemetry{}, &recordingTelemetry{}
	tel := NewTelemetry(a, panickingTelemetry{}, b)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		tel.TrackEvent(ctx, "delete-todo", nil, nil)
		tel.TrackException(ctx, ErrNotFound)
	})
	for _, r := range []*recordingTelemetry{a, b} {
		assert.Len(t, r.events, 1)
		assert.Len(t, r.exceptions, 1)
	}
}
