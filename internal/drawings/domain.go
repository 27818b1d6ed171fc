package drawings

import "time"

// ShopDrawing is one submitted shop drawing revision.
type ShopDrawing struct {
	ID          string
	ProjectID   string
	Title       string
	Discipline  string
	Revision    int
	Status      string
	SubmittedBy string
	CreatedAt   time.Time
}
