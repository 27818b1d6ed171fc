package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/formwork-pm/formwork/internal/auth"
	"github.com/formwork-pm/formwork/internal/shared"
)

// SessionRevoker cuts live sessions for a principal: it reads the session
// registry from postgres, deletes the Redis-backed sessions and then the
// registry rows. Privilege changes take effect on the next request.
type SessionRevoker struct {
	repo     auth.Repository
	sessions *shared.SessionManager
	logger   *slog.Logger
}

// NewSessionRevoker constructs a SessionRevoker.
func NewSessionRevoker(repo auth.Repository, sessions *shared.SessionManager, logger *slog.Logger) *SessionRevoker {
	return &SessionRevoker{repo: repo, sessions: sessions, logger: logger}
}

// Handle processes TaskSessionRevoke tasks.
func (s *SessionRevoker) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionRevokePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PrincipalID == "" {
		return asynq.SkipRetry
	}

	records, err := s.repo.SessionsByPrincipal(ctx, payload.PrincipalID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := s.sessions.Revoke(ctx, rec.ID); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteSessionsByPrincipal(ctx, payload.PrincipalID); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("revoked sessions",
			slog.String("principal_id", payload.PrincipalID),
			slog.Int("count", len(records)))
	}
	return nil
}
