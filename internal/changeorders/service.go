package changeorders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// RepositoryPort defines data access methods for change orders.
type RepositoryPort interface {
	ListByProject(ctx context.Context, projectID string) ([]ChangeOrder, error)
	Get(ctx context.Context, id string) (ChangeOrder, error)
	Create(ctx context.Context, co ChangeOrder) (ChangeOrder, error)
	SetDecision(ctx context.Context, id, status, approverID string) (ChangeOrder, error)
}

// Service handles change order business logic. Approval and editing are
// distinct capabilities: holding one never implies the other.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListByProject returns change orders for a project.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]ChangeOrder, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// Raise creates a pending change order.
func (s *Service) Raise(ctx context.Context, actorID, projectID, description string, amount float64) (ChangeOrder, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return ChangeOrder{}, fmt.Errorf("%w: description required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, ChangeOrder{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Description: description,
		Amount:      amount,
		Status:      StatusPending,
		RequestedBy: actorID,
	})
}

// Decide approves or rejects a pending change order. A decision on an
// already decided order reports a conflict, not a silent overwrite.
func (s *Service) Decide(ctx context.Context, approverID, id string, approve bool) (ChangeOrder, error) {
	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	co, err := s.repo.SetDecision(ctx, id, status, approverID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if _, getErr := s.repo.Get(ctx, id); getErr == nil {
				return ChangeOrder{}, fmt.Errorf("%w: change order already decided", httpx.ErrConflict)
			}
			return ChangeOrder{}, shared.ErrNotFound
		}
		return ChangeOrder{}, err
	}
	return co, nil
}
