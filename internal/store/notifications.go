package store

import (
	"context"
	"fmt"

	"noticeboard-go/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Notification methods

func (s *PostgresStore) CreateNotification(ctx context.Context, title, body, url, icon string, targetUserIDs []int) (models.Notification, error) {
	n := models.Notification{
		ID:            uuid.NewString(),
		Title:         title,
		Body:          body,
		URL:           url,
		Icon:          icon,
		TargetUserIDs: targetUserIDs,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (id, title, body, url, icon, target_user_ids, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING created_at`,
		n.ID, n.Title, n.Body, n.URL, n.Icon, pq.Array(int64s(targetUserIDs)),
	).Scan(&n.CreatedAt)

	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, url, icon, target_user_ids, created_at
		 FROM notifications ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var targets pq.Int64Array
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.URL, &n.Icon, &targets, &n.CreatedAt); err != nil {
			return nil, err
		}
		for _, id := range targets {
			n.TargetUserIDs = append(n.TargetUserIDs, int(id))
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// Receipt methods
//
// Every write is an upsert that only ever raises flags. COALESCE keeps
// the first timestamp, so repeating a call leaves stored state unchanged.

func (s *PostgresStore) MarkRead(ctx context.Context, userID int, notificationID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (user_id, notification_id, is_read, read_at)
		 VALUES ($1, $2, TRUE, NOW())
		 ON CONFLICT (user_id, notification_id) DO UPDATE SET
		   is_read = TRUE,
		   read_at = COALESCE(receipts.read_at, NOW())`,
		userID, notificationID,
	)
	return err
}

func (s *PostgresStore) MarkClicked(ctx context.Context, userID int, notificationID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (user_id, notification_id, is_clicked, clicked_at)
		 VALUES ($1, $2, TRUE, NOW())
		 ON CONFLICT (user_id, notification_id) DO UPDATE SET
		   is_clicked = TRUE,
		   clicked_at = COALESCE(receipts.clicked_at, NOW())`,
		userID, notificationID,
	)
	return err
}

func (s *PostgresStore) MarkDeleted(ctx context.Context, userID int, notificationID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (user_id, notification_id, is_deleted)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (user_id, notification_id) DO UPDATE SET
		   is_deleted = TRUE`,
		userID, notificationID,
	)
	return err
}

func (s *PostgresStore) MarkManyRead(ctx context.Context, userID int, notificationIDs []string) error {
	if len(notificationIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, id := range notificationIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO receipts (user_id, notification_id, is_read, read_at)
			 VALUES ($1, $2, TRUE, NOW())
			 ON CONFLICT (user_id, notification_id) DO UPDATE SET
			   is_read = TRUE,
			   read_at = COALESCE(receipts.read_at, NOW())`,
			userID, id,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to mark notification %s read: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetReceipts(ctx context.Context, userID int, notificationIDs []string) (map[string]models.Receipt, error) {
	receipts := make(map[string]models.Receipt)
	if len(notificationIDs) == 0 {
		return receipts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, notification_id, is_read, read_at, is_clicked, clicked_at, is_deleted
		 FROM receipts WHERE user_id = $1 AND notification_id = ANY($2)`,
		userID, pq.Array(notificationIDs),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.Receipt
		if err := rows.Scan(&rec.UserID, &rec.NotificationID, &rec.IsRead, &rec.ReadAt, &rec.IsClicked, &rec.ClickedAt, &rec.IsDeleted); err != nil {
			return nil, err
		}
		receipts[rec.NotificationID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}
