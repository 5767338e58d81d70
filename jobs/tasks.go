package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPermissionsInvalidate drops cached calculations by cache tag.
	TaskPermissionsInvalidate = "permissions:invalidate"
	// TaskPermissionsWarmup precomputes permissions for active accounts.
	TaskPermissionsWarmup = "permissions:warmup"
)

// InvalidatePayload names the cache tags to drop.
type InvalidatePayload struct {
	Tags []string `json:"tags"`
}

// NewInvalidateTask constructs an invalidation task.
func NewInvalidateTask(payload InvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionsInvalidate, data), nil
}

// WarmupPayload names the scopes to precompute for every active account.
type WarmupPayload struct {
	Scopes []string `json:"scopes"`
}

// NewWarmupTask constructs a warmup task.
func NewWarmupTask(scopes []string) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{Scopes: scopes})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionsWarmup, data), nil
}
