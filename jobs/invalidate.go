package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TagInvalidator drops cached calculations by cache tag; satisfied by the
// durable variation cache tier.
type TagInvalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

// InvalidateJob processes TaskPermissionsInvalidate tasks against the
// durable tier. Transient tiers are per-process and converge through their
// max-age; only the durable tier needs explicit invalidation.
type InvalidateJob struct {
	cache  TagInvalidator
	logger *slog.Logger
}

// NewInvalidateJob constructs an InvalidateJob.
func NewInvalidateJob(cache TagInvalidator, logger *slog.Logger) *InvalidateJob {
	return &InvalidateJob{cache: cache, logger: logger}
}

// Handle drops every cached calculation carrying one of the payload's tags.
func (j *InvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload InvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Tags) == 0 {
		return nil
	}
	if err := j.cache.InvalidateTags(ctx, payload.Tags...); err != nil {
		j.logger.Error("invalidate tags", slog.Any("tags", payload.Tags), slog.Any("error", err))
		return err
	}
	j.logger.Info("invalidated permission cache", slog.Any("tags", payload.Tags))
	return nil
}
