package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/autoreel/internal/models"
)

type CredentialsRepository interface {
	Upsert(ctx context.Context, c *models.TikTokCredential) error
	GetByUserID(ctx context.Context, userID int64) (*models.TikTokCredential, error)
	ListExpiringBefore(ctx context.Context, deadline time.Time) ([]*models.TikTokCredential, error)
	SetTokens(ctx context.Context, userID int64, oldAccessToken string, c *models.TikTokCredential) error
	SetStatus(ctx context.Context, userID int64, status string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
	Remove(ctx context.Context, userID int64) error
}

type credentialsRepository struct {
	db *sql.DB
}

func NewCredentialsRepository(db *sql.DB) CredentialsRepository {
	return &credentialsRepository{db: db}
}

const credentialColumns = `user_id, access_token, refresh_token, expires_in, open_id, scope, status, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (*models.TikTokCredential, error) {
	var c models.TikTokCredential
	err := row.Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.ExpiresIn,
		&c.OpenID, &c.Scope, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert replaces the stored grant in place on re-link; at most one
// credential per user.
func (r *credentialsRepository) Upsert(ctx context.Context, c *models.TikTokCredential) error {
	query := `
		INSERT INTO tiktok_credentials(
			user_id,
			access_token,
			refresh_token,
			expires_in,
			open_id,
			scope,
			status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_in = EXCLUDED.expires_in,
			open_id = EXCLUDED.open_id,
			scope = EXCLUDED.scope,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		c.UserID,
		c.AccessToken,
		c.RefreshToken,
		c.ExpiresIn,
		c.OpenID,
		c.Scope,
		models.CredentialStatusActive,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialsRepository) GetByUserID(ctx context.Context, userID int64) (*models.TikTokCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM tiktok_credentials WHERE user_id = $1`

	c, err := scanCredential(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return c, nil
}

// ListExpiringBefore returns credentials whose effective expiry
// (updated_at + expires_in) falls before the deadline, already-expired
// ones included.
func (r *credentialsRepository) ListExpiringBefore(ctx context.Context, deadline time.Time) ([]*models.TikTokCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM tiktok_credentials
		WHERE updated_at + (expires_in * interval '1 second') <= $1`

	rows, err := r.db.QueryContext(ctx, query, deadline)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var credentials []*models.TikTokCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return credentials, nil
}

// SetTokens rotates the token pair under a serializable transaction,
// matching against the old access token so two concurrent refreshes
// cannot both win.
func (r *credentialsRepository) SetTokens(ctx context.Context, userID int64, oldAccessToken string, c *models.TikTokCredential) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE tiktok_credentials
		SET
			access_token = $3,
			refresh_token = $4,
			expires_in = $5,
			status = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, query, userID, oldAccessToken,
		c.AccessToken, c.RefreshToken, c.ExpiresIn, models.CredentialStatusActive)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("token rotation skipped; credential changed concurrently")
		return errors.New("token rotation skipped; credential changed concurrently")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialsRepository) SetStatus(ctx context.Context, userID int64, status string) error {
	query := `UPDATE tiktok_credentials SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, status)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *credentialsRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiktok_credentials WHERE status = $1`, status).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *credentialsRepository) Remove(ctx context.Context, userID int64) error {
	query := `DELETE FROM tiktok_credentials WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}
