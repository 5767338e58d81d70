package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

// AccountLister enumerates the accounts to warm the cache for.
type AccountLister interface {
	ListActive(ctx context.Context) ([]accounts.Account, error)
}

// WarmupJob precomputes permissions for every active account in the
// payload's scopes, populating the durable tier ahead of traffic.
type WarmupJob struct {
	chain    *permissions.Chain
	accounts AccountLister
	logger   *slog.Logger
}

// NewWarmupJob constructs a WarmupJob.
func NewWarmupJob(chain *permissions.Chain, lister AccountLister, logger *slog.Logger) *WarmupJob {
	return &WarmupJob{chain: chain, accounts: lister, logger: logger}
}

// Handle processes TaskPermissionsWarmup tasks. A failing account/scope pair
// aborts the run so asynq retries it; completed pairs are already cached and
// become cheap hits on the retry.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Scopes) == 0 {
		return nil
	}

	active, err := j.accounts.ListActive(ctx)
	if err != nil {
		return err
	}
	warmed := 0
	for _, account := range active {
		for _, scope := range payload.Scopes {
			if _, err := j.chain.CalculatePermissions(ctx, account.Identity(), scope); err != nil {
				j.logger.Error("warmup calculation",
					slog.Int64("account", account.ID),
					slog.String("scope", scope),
					slog.Any("error", err))
				return err
			}
			warmed++
		}
	}
	j.logger.Info("permission cache warmed", slog.Int("calculations", warmed))
	return nil
}
