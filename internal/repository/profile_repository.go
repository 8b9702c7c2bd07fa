package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/autoreel/internal/models"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *models.MonitoredProfile) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.MonitoredProfile, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.MonitoredProfile, error)
	ListActive(ctx context.Context) ([]*models.MonitoredProfile, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetCheckInterval(ctx context.Context, id int64, minutes int) error
	TouchChecked(ctx context.Context, id int64, checkedAt time.Time) error
	SetLastPosted(ctx context.Context, id int64, postedAt time.Time) error
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	Remove(ctx context.Context, id int64) error
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, user_id, instagram_username, display_name, profile_picture_url,
	is_active, check_interval_minutes, last_checked_at, last_posted_at, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.MonitoredProfile, error) {
	var p models.MonitoredProfile
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.ProfilePictureURL,
		&p.IsActive, &p.CheckIntervalMinutes, &p.LastCheckedAt, &p.LastPostedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) Create(ctx context.Context, p *models.MonitoredProfile) (int64, error) {
	query := `
		INSERT INTO monitored_profiles(
			user_id,
			instagram_username,
			display_name,
			profile_picture_url,
			is_active,
			check_interval_minutes
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.UserID,
		p.Username,
		p.DisplayName,
		p.ProfilePictureURL,
		p.IsActive,
		p.CheckIntervalMinutes,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id int64) (*models.MonitoredProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM monitored_profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.MonitoredProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM monitored_profiles WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (r *profileRepository) ListActive(ctx context.Context) ([]*models.MonitoredProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM monitored_profiles WHERE is_active = true ORDER BY last_checked_at NULLS FIRST`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func collectProfiles(rows *sql.Rows) ([]*models.MonitoredProfile, error) {
	var profiles []*models.MonitoredProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE monitored_profiles SET is_active = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *profileRepository) SetCheckInterval(ctx context.Context, id int64, minutes int) error {
	query := `UPDATE monitored_profiles SET check_interval_minutes = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, minutes)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *profileRepository) TouchChecked(ctx context.Context, id int64, checkedAt time.Time) error {
	query := `UPDATE monitored_profiles SET last_checked_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, checkedAt)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *profileRepository) SetLastPosted(ctx context.Context, id int64, postedAt time.Time) error {
	query := `UPDATE monitored_profiles SET last_posted_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, postedAt)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *profileRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitored_profiles`).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *profileRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitored_profiles WHERE is_active = true`).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

// Remove deletes the profile; its reels go with it via ON DELETE CASCADE.
func (r *profileRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM monitored_profiles WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}
