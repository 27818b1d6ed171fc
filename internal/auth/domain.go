package auth

import "time"

// Credential is the login view of a principal record.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
}

// SessionRecord is the database-side registry of an issued session, kept so
// privilege changes can revoke live sessions by principal.
type SessionRecord struct {
	ID          string
	PrincipalID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
