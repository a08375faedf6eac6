package notify

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds attached to in-app notifications.
const (
	EventApproval  = "approval"
	EventRejection = "rejection"
	EventExpiry    = "expiry"
)

// AdminNotification is an in-app notification record. The engine only
// guarantees the record is produced; delivery is the sink's business.
type AdminNotification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Event       string    `json:"event"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailNotification is an outbound email record.
type EmailNotification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

func newID() string { return uuid.NewString() }
