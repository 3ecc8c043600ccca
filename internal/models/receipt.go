package models

import "time"

// Receipt tracks what one user did with one notification, independent
// of whether push delivery to any of their devices succeeded. Flags are
// monotonic: once set they are never cleared. A missing receipt reads
// as unread, unclicked, not deleted.
type Receipt struct {
	UserID         int        `json:"user_id"`
	NotificationID string     `json:"notification_id"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsClicked      bool       `json:"is_clicked"`
	ClickedAt      *time.Time `json:"clicked_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
}
