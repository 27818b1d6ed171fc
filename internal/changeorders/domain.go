package changeorders

import "time"

// Change order statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ChangeOrder represents a scope/cost change raised against a project.
type ChangeOrder struct {
	ID          string
	ProjectID   string
	Number      int
	Description string
	Amount      float64
	Status      string
	RequestedBy string
	ApprovedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
