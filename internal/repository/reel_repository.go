package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/autoreel/internal/models"
)

type ReelRepository interface {
	Create(ctx context.Context, reel *models.Reel) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Reel, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, userID int64, status string, profileID int64, limit int) ([]*models.Reel, error)
	ListPending(ctx context.Context, limit int) ([]*models.Reel, error)
	SetMediaPath(ctx context.Context, id int64, path string) error
	ClearMediaPath(ctx context.Context, id int64) error
	MarkPosted(ctx context.Context, id int64, postID, postURL string, postedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, errorMessage string) (bool, error)
	ResetToPending(ctx context.Context, id int64) (bool, error)
	ListTerminalWithMediaBefore(ctx context.Context, cutoff time.Time) ([]*models.Reel, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountByProfile(ctx context.Context, profileID int64) (int64, error)
}

type reelRepository struct {
	db *sql.DB
}

func NewReelRepository(db *sql.DB) ReelRepository {
	return &reelRepository{db: db}
}

const reelColumns = `id, profile_id, instagram_reel_code, instagram_reel_url, video_url, caption,
	status, error_message, video_file_path, tiktok_post_id, tiktok_post_url, posted_at, created_at, updated_at`

const reelPrefixedColumns = `r.id, r.profile_id, r.instagram_reel_code, r.instagram_reel_url, r.video_url, r.caption,
	r.status, r.error_message, r.video_file_path, r.tiktok_post_id, r.tiktok_post_url, r.posted_at, r.created_at, r.updated_at`

func scanReel(row interface{ Scan(...any) error }) (*models.Reel, error) {
	var reel models.Reel
	err := row.Scan(&reel.ID, &reel.ProfileID, &reel.ReelCode, &reel.ReelURL, &reel.VideoURL,
		&reel.Caption, &reel.Status, &reel.ErrorMessage, &reel.VideoFilePath,
		&reel.TiktokPostID, &reel.TiktokPostURL, &reel.PostedAt, &reel.CreatedAt, &reel.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &reel, nil
}

func (r *reelRepository) Create(ctx context.Context, reel *models.Reel) (int64, error) {
	query := `
		INSERT INTO reels(
			profile_id,
			instagram_reel_code,
			instagram_reel_url,
			video_url,
			caption,
			status
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instagram_reel_code) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		reel.ProfileID,
		reel.ReelCode,
		reel.ReelURL,
		reel.VideoURL,
		reel.Caption,
		models.ReelStatusPending,
	).Scan(&id)
	if err != nil {
		// Conflict on the reel code means another sweep got here first.
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *reelRepository) GetByID(ctx context.Context, id int64) (*models.Reel, error) {
	query := `SELECT ` + reelColumns + ` FROM reels WHERE id = $1`

	reel, err := scanReel(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return reel, nil
}

func (r *reelRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	query := `SELECT 1 FROM reels WHERE instagram_reel_code = $1`

	var result int
	err := r.db.QueryRowContext(ctx, query, code).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (r *reelRepository) List(ctx context.Context, userID int64, status string, profileID int64, limit int) ([]*models.Reel, error) {
	query := `SELECT ` + reelPrefixedColumns + ` FROM reels r
		JOIN monitored_profiles p ON p.id = r.profile_id`
	var args []any
	var conds []string

	if userID != 0 {
		args = append(args, userID)
		conds = append(conds, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if profileID != 0 {
		args = append(args, profileID)
		conds = append(conds, fmt.Sprintf("r.profile_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY r.created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectReels(rows)
}

func (r *reelRepository) ListPending(ctx context.Context, limit int) ([]*models.Reel, error) {
	query := `SELECT ` + reelColumns + ` FROM reels WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, models.ReelStatusPending, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectReels(rows)
}

func collectReels(rows *sql.Rows) ([]*models.Reel, error) {
	var reels []*models.Reel
	for rows.Next() {
		reel, err := scanReel(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		reels = append(reels, reel)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return reels, nil
}

func (r *reelRepository) SetMediaPath(ctx context.Context, id int64, path string) error {
	query := `UPDATE reels SET video_file_path = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, path)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *reelRepository) ClearMediaPath(ctx context.Context, id int64) error {
	query := `UPDATE reels SET video_file_path = '', updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

// MarkPosted transitions pending -> posted. The status guard keeps two
// workers from both recording a publish for the same reel; the caller
// must treat a false return as "someone else finished this".
func (r *reelRepository) MarkPosted(ctx context.Context, id int64, postID, postURL string, postedAt time.Time) (bool, error) {
	query := `
		UPDATE reels
		SET status = $2,
			tiktok_post_id = $3,
			tiktok_post_url = $4,
			posted_at = $5,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query, id, models.ReelStatusPosted, postID, postURL, postedAt, models.ReelStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// MarkFailed transitions pending -> failed under the same guard.
func (r *reelRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) (bool, error) {
	query := `
		UPDATE reels
		SET status = $2,
			error_message = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, id, models.ReelStatusFailed, errorMessage, models.ReelStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// ResetToPending is the explicit operator action that makes a failed
// reel eligible again. Posted reels are never reset.
func (r *reelRepository) ResetToPending(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE reels
		SET status = $2,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, id, models.ReelStatusPending, models.ReelStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *reelRepository) ListTerminalWithMediaBefore(ctx context.Context, cutoff time.Time) ([]*models.Reel, error) {
	query := `SELECT ` + reelColumns + ` FROM reels
		WHERE status IN ($1, $2) AND video_file_path <> '' AND updated_at < $3`

	rows, err := r.db.QueryContext(ctx, query, models.ReelStatusPosted, models.ReelStatusFailed, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectReels(rows)
}

func (r *reelRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM reels GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return counts, nil
}

func (r *reelRepository) CountByProfile(ctx context.Context, profileID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reels WHERE profile_id = $1`, profileID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}
