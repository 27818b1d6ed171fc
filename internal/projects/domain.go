package projects

import "time"

// Project statuses.
const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusOnHold    = "on_hold"
	StatusCompleted = "completed"
)

// Project represents a construction project.
type Project struct {
	ID         string
	Code       string
	Name       string
	Status     string
	Budget     float64
	ActualCost float64
	CreatedBy  string
	ManagerID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Member is one row of project membership.
type Member struct {
	ProjectID   string
	PrincipalID string
	Role        string
	AddedAt     time.Time
}
