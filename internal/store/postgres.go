package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"noticeboard-go/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection (used by tests).
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	migrations := []string{
		`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS icon TEXT NOT NULL DEFAULT '';`,
		`ALTER TABLE receipts ADD COLUMN IF NOT EXISTS clicked_at TIMESTAMP WITH TIME ZONE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, username, password_hash, role, created_at`,
		username, passwordHash, role,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)

	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &totpSecret, &user.TOTPEnabled, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}

	return user, nil
}

func (s *PostgresStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var totpSecret sql.NullString

		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &totpSecret, &user.TOTPEnabled, &user.CreatedAt); err != nil {
			return nil, err
		}

		if totpSecret.Valid {
			user.TOTPSecret = totpSecret.String
		}

		users = append(users, user)
	}

	return users, rows.Err()
}

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		totpSecret, enabled, userID,
	)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, actorID int, action, targetType, targetID, metadata string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		actorID, action, targetType, targetID, metadata,
	)
	return err
}

// Subscription methods

func (s *PostgresStore) Register(ctx context.Context, sub models.Subscription) error {
	key := sub.EndpointKey
	if key == "" {
		key = models.EndpointKey(sub.Endpoint)
	}

	// Last write wins on the whole record, including the owner. A stale
	// owner just stops receiving pushes on this endpoint.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (endpoint_key, user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (endpoint_key) DO UPDATE SET
		   user_id = EXCLUDED.user_id,
		   endpoint = EXCLUDED.endpoint,
		   p256dh = EXCLUDED.p256dh,
		   auth = EXCLUDED.auth`,
		key, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth,
	)
	return err
}

func (s *PostgresStore) Unregister(ctx context.Context, endpoint string) error {
	// Absent rows are fine: unregister and dispatch pruning can race.
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE endpoint_key = $1`,
		models.EndpointKey(endpoint),
	)
	return err
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Subscription, error) {
	return s.listSubscriptions(ctx,
		`SELECT endpoint_key, user_id, endpoint, p256dh, auth, created_at FROM subscriptions`)
}

func (s *PostgresStore) ListForUsers(ctx context.Context, userIDs []int) ([]models.Subscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.listSubscriptions(ctx,
		`SELECT endpoint_key, user_id, endpoint, p256dh, auth, created_at FROM subscriptions WHERE user_id = ANY($1)`,
		pq.Array(int64s(userIDs)))
}

func (s *PostgresStore) listSubscriptions(ctx context.Context, query string, args ...any) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.EndpointKey, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
