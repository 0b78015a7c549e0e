package router

import (
	"context"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/metrics"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/telemetry"
)

// Router applies decoded telemetry to the registry's charts. Route is not
// safe for concurrent use; the device manager calls it from one goroutine.
type Router struct {
	registry *registry.Registry
	recorder metrics.Recorder
	logger   logger.Logger
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder stores every routed record in rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithLogger overrides the default package logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Router) {
		r.logger = log
	}
}

// WithClock overrides time.Now for received-at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registry: reg,
		logger:   logger.Component("router"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handle implements device.Handler.
func (r *Router) Handle(ctx context.Context, rec telemetry.Record) {
	r.Route(ctx, rec)
}

// Route ensures chart state exists for the record's device and applies the
// record to exactly one of its charts.
func (r *Router) Route(ctx context.Context, rec telemetry.Record) {
	r.apply(rec)

	metrics.ObserveRouted(rec.Kind.String())
	metrics.SetDevicesRegistered(r.registry.Len())

	if r.recorder == nil {
		return
	}

	sample := &metrics.Sample{
		ReceivedAt: r.now(),
		ObservedAt: rec.ObservedAt,
		DeviceID:   rec.DeviceID,
		Kind:       rec.Kind.String(),
	}
	switch rec.Kind {
	case telemetry.KindDistribution:
		sample.Category = rec.Category
		sample.Value = rec.Quantity
	case telemetry.KindCounter:
		sample.Value = rec.Count
	case telemetry.KindUnknown:
	}

	if err := r.recorder.Record(ctx, sample); err != nil {
		r.logger.Warn().Err(err).Str("device_id", rec.DeviceID).Msg("Failed to record telemetry history")
	}
}

// Replay rebuilds chart state from stored history without recording it
// again. Samples must be in first-seen order. It returns the number of
// samples applied before ctx was cancelled.
func (r *Router) Replay(ctx context.Context, samples []metrics.Sample) int {
	applied := 0
	for _, s := range samples {
		if ctx.Err() != nil {
			break
		}
		rec := telemetry.Record{
			DeviceID:   s.DeviceID,
			Kind:       telemetry.ParseKind(s.Kind),
			ObservedAt: s.ObservedAt,
		}
		switch rec.Kind {
		case telemetry.KindDistribution:
			rec.Category = s.Category
			rec.Quantity = s.Value
		case telemetry.KindCounter:
			rec.Count = s.Value
		case telemetry.KindUnknown:
		}
		r.apply(rec)
		applied++
	}
	metrics.SetDevicesRegistered(r.registry.Len())

	return applied
}

func (r *Router) apply(rec telemetry.Record) {
	deviceID := rec.DeviceID
	if deviceID == "" {
		deviceID = telemetry.UnknownDeviceID
	}

	dev, created := r.registry.Ensure(deviceID)
	if created {
		r.logger.Info().
			Str("device_id", deviceID).
			Int("index", dev.Index).
			Str("primary", string(dev.Variant.Primary)).
			Str("secondary", string(dev.Variant.Secondary)).
			Msg("New device detected")
	}

	switch rec.Kind {
	case telemetry.KindDistribution:
		if rec.Ambiguous() {
			r.logger.Debug().Str("device_id", deviceID).Msg("Record matches both shapes, treating as distribution")
		}
		dev.Distribution.ApplyDistribution(rec.Category, rec.Quantity)
		r.logger.Debug().
			Str("device_id", deviceID).
			Str("category", rec.Category).
			Float64("value", rec.Quantity).
			Msg("Distribution updated")
	case telemetry.KindCounter:
		dev.Counter.ApplyCounter(rec.Count)
		r.logger.Debug().
			Str("device_id", deviceID).
			Float64("value", rec.Count).
			Msg("Counter updated")
	case telemetry.KindUnknown:
		r.logger.Info().
			Str("device_id", deviceID).
			Str("error_code", string(errors.ErrUnrecognizedShape)).
			RawJSON("payload", rawPayload(rec)).
			Msg("Unrecognized telemetry received")
	}
}

func rawPayload(rec telemetry.Record) []byte {
	if len(rec.Raw) == 0 {
		return []byte("{}")
	}

	return rec.Raw
}
