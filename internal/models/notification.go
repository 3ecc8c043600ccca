package models

import "time"

// Notification is an immutable board entry. TargetUserIDs empty means
// broadcast: every active subscription gets a delivery attempt.
type Notification struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	URL           string    `json:"url"`
	Icon          string    `json:"icon,omitempty"`
	TargetUserIDs []int     `json:"target_user_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Broadcast reports whether the notification has no explicit recipient list.
func (n *Notification) Broadcast() bool {
	return len(n.TargetUserIDs) == 0
}
