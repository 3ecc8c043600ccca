package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Subscription is one browser/device registration for web push delivery.
// A user may own any number of them, one per device.
type Subscription struct {
	EndpointKey string    `json:"endpoint_key"`
	UserID      int       `json:"user_id"`
	Endpoint    string    `json:"endpoint"`
	P256dh      string    `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth        string    `json:"keys_auth"`   // Mapped from keys.auth
	CreatedAt   time.Time `json:"created_at"`
}

// EndpointKey derives the stable primary key for a push endpoint URL.
// Endpoints can exceed index size limits, so the key is a digest.
func EndpointKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}
