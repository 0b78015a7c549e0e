package metrics

import (
	"context"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
)

// Sample kinds accepted by the samples table.
var validKinds = map[string]bool{
	"distribution": true,
	"counter":      true,
	"unknown":      true,
}

// NewService returns the telemetry history recorder described by cfg. When
// history is disabled every call succeeds and nothing is stored.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Telemetry history disabled")
		return disabled{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &history{repo: repo, log: log}, nil
}

type history struct {
	repo Repository
	log  logger.Logger
}

func (h *history) Record(ctx context.Context, sample *Sample) error {
	errFactory := errors.New()

	if err := validateSample(sample); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	if err := h.repo.Record(sample); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}

	return nil
}

func (h *history) Latest(ctx context.Context) ([]Sample, error) {
	samples, err := h.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	h.log.Debug().Int("series", len(samples)).Msg("Loaded latest telemetry history")

	return samples, nil
}

func (h *history) Close() error {
	if err := h.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func validateSample(sample *Sample) error {
	errFactory := errors.New()

	switch {
	case sample == nil:
		return errFactory.WithMessage(ErrInvalidSample, "nil sample")
	case sample.DeviceID == "":
		return errFactory.WithMessage(ErrInvalidSample, "sample has no device id")
	case !validKinds[sample.Kind]:
		return errFactory.WithData(ErrInvalidSample, struct {
			Kind string
		}{sample.Kind})
	}

	return nil
}

type disabled struct{}

func (disabled) Record(context.Context, *Sample) error {
	return nil
}

func (disabled) Latest(context.Context) ([]Sample, error) {
	return nil, nil
}

func (disabled) Close() error {
	return nil
}
