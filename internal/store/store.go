package store

import (
	"context"
	"errors"

	"noticeboard-go/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserStore handles account operations for the session layer (PostgreSQL)
type UserStore interface {
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error
	InsertAudit(ctx context.Context, actorID int, action, targetType, targetID, metadata string) error
}

// SubscriptionStore handles push endpoint registrations (PostgreSQL)
type SubscriptionStore interface {
	// Register upserts by the endpoint's derived key. Re-registering the
	// same endpoint overwrites credentials and owner; never an error.
	Register(ctx context.Context, sub models.Subscription) error
	// Unregister deletes by endpoint. Deleting an absent endpoint is a no-op.
	Unregister(ctx context.Context, endpoint string) error
	ListAll(ctx context.Context) ([]models.Subscription, error)
	ListForUsers(ctx context.Context, userIDs []int) ([]models.Subscription, error)
}

// NotificationStore handles the append-mostly notification log (PostgreSQL)
type NotificationStore interface {
	CreateNotification(ctx context.Context, title, body, url, icon string, targetUserIDs []int) (models.Notification, error)
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
}

// ReceiptStore handles per-(user, notification) interaction state.
// All writes are create-if-absent merges; flags only ever move to true.
type ReceiptStore interface {
	MarkRead(ctx context.Context, userID int, notificationID string) error
	MarkClicked(ctx context.Context, userID int, notificationID string) error
	MarkDeleted(ctx context.Context, userID int, notificationID string) error
	// MarkManyRead marks all ids in one transaction: either every id is
	// marked or none are and the error reports the failure.
	MarkManyRead(ctx context.Context, userID int, notificationIDs []string) error
	// GetReceipts returns the user's receipts for exactly the given
	// notification ids, keyed by notification id. Missing receipts are
	// simply absent from the map.
	GetReceipts(ctx context.Context, userID int, notificationIDs []string) (map[string]models.Receipt, error)
}
