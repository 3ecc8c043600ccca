package notify

import (
	"context"
	"fmt"
	"time"

	"noticeboard-go/internal/models"
)

// DefaultLimit bounds the board view when the client doesn't ask for one.
const DefaultLimit = 20

// NotificationSource is the read side of the notification log.
type NotificationSource interface {
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
}

// ReceiptStore is the per-user interaction state the projection joins against.
type ReceiptStore interface {
	MarkRead(ctx context.Context, userID int, notificationID string) error
	MarkClicked(ctx context.Context, userID int, notificationID string) error
	MarkDeleted(ctx context.Context, userID int, notificationID string) error
	MarkManyRead(ctx context.Context, userID int, notificationIDs []string) error
	GetReceipts(ctx context.Context, userID int, notificationIDs []string) (map[string]models.Receipt, error)
}

// Entry is one row of a user's board: a notification plus that user's
// read/click state. Soft-deleted entries never appear.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
	IsClicked bool      `json:"is_clicked"`
}

// Service joins recent notifications with a user's receipts. Visibility
// is not filtered by target list: every user sees the recent board and
// receipts supply only read/click/delete state.
type Service struct {
	notifications NotificationSource
	receipts      ReceiptStore
}

func NewService(notifications NotificationSource, receipts ReceiptStore) *Service {
	return &Service{notifications: notifications, receipts: receipts}
}

// ListForUser returns the user's view of the limit most recent
// notifications, newest first, minus anything they soft-deleted.
// Storage errors abort the whole projection; no partial view is returned.
func (s *Service) ListForUser(ctx context.Context, userID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	notifications, err := s.notifications.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if len(notifications) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(notifications))
	for i, n := range notifications {
		ids[i] = n.ID
	}

	// One bounded lookup for the whole page, not one query per row.
	receipts, err := s.receipts.GetReceipts(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}

	entries := make([]Entry, 0, len(notifications))
	for _, n := range notifications {
		rec := receipts[n.ID]
		if rec.IsDeleted {
			continue
		}
		entries = append(entries, Entry{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			URL:       n.URL,
			Icon:      n.Icon,
			CreatedAt: n.CreatedAt,
			IsRead:    rec.IsRead,
			IsClicked: rec.IsClicked,
		})
	}

	return entries, nil
}

func (s *Service) MarkManyRead(ctx context.Context, userID int, notificationIDs []string) error {
	return s.receipts.MarkManyRead(ctx, userID, notificationIDs)
}

func (s *Service) MarkClicked(ctx context.Context, userID int, notificationID string) error {
	return s.receipts.MarkClicked(ctx, userID, notificationID)
}

func (s *Service) MarkDeleted(ctx context.Context, userID int, notificationID string) error {
	return s.receipts.MarkDeleted(ctx, userID, notificationID)
}
