package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/formwork-pm/formwork/internal/shared"
)

// DefaultAuditRetention keeps six months of audit history.
const DefaultAuditRetention = 180 * 24 * time.Hour

// AuditPruner removes audit records older than the retention window.
type AuditPruner struct {
	audit     *shared.AuditLogger
	retention time.Duration
	logger    *slog.Logger
}

// NewAuditPruner constructs an AuditPruner.
func NewAuditPruner(audit *shared.AuditLogger, retention time.Duration, logger *slog.Logger) *AuditPruner {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &AuditPruner{audit: audit, retention: retention, logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (p *AuditPruner) Handle(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-p.retention)
	pruned, err := p.audit.PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Info("pruned audit logs", slog.Int64("rows", pruned), slog.Time("cutoff", cutoff))
	}
	return nil
}
