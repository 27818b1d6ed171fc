package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionRevoke revokes every live session of one principal after a
	// privilege change.
	TaskSessionRevoke = "sessions:revoke"
	// TaskAuditRetention prunes expired audit log records.
	TaskAuditRetention = "audit:retention"
)

// SessionRevokePayload names the principal whose sessions must go.
type SessionRevokePayload struct {
	PrincipalID string `json:"principal_id"`
}

// NewSessionRevokeTask constructs an Asynq task.
func NewSessionRevokeTask(payload SessionRevokePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionRevoke, data), nil
}

// NewAuditRetentionTask constructs the scheduled retention task.
func NewAuditRetentionTask() *asynq.Task {
	return asynq.NewTask(TaskAuditRetention, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSessionRevoke schedules session revocation for a principal.
// Implements the revoker port used by the principals service.
func (c *Client) EnqueueSessionRevoke(ctx context.Context, principalID string) error {
	task, err := NewSessionRevokeTask(SessionRevokePayload{PrincipalID: principalID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
