package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/autoreel/internal/models"
)

type ProxyRepository interface {
	GetActiveBest(ctx context.Context) (*models.ProxyEndpoint, error)
	GetByID(ctx context.Context, id int64) (*models.ProxyEndpoint, error)
	IncrementStats(ctx context.Context, id int64, success bool) (successCount, failureCount int64, err error)
	Deactivate(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	UpsertByURL(ctx context.Context, proxyURL, proxyType string) error
	List(ctx context.Context) ([]*models.ProxyEndpoint, error)
	CountActive(ctx context.Context) (int64, error)
}

type proxyRepository struct {
	db *sql.DB
}

func NewProxyRepository(db *sql.DB) ProxyRepository {
	return &proxyRepository{db: db}
}

const proxyColumns = `id, proxy_url, proxy_type, is_active, success_count, failure_count, last_used_at, created_at`

func scanProxy(row interface{ Scan(...any) error }) (*models.ProxyEndpoint, error) {
	var p models.ProxyEndpoint
	err := row.Scan(&p.ID, &p.ProxyURL, &p.ProxyType, &p.IsActive,
		&p.SuccessCount, &p.FailureCount, &p.LastUsedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveBest returns the active endpoint with the most recorded
// successes, lowest id on ties. Returns nil when no active endpoint
// exists.
func (r *proxyRepository) GetActiveBest(ctx context.Context) (*models.ProxyEndpoint, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxy_endpoints
		WHERE is_active = true
		ORDER BY success_count DESC, id ASC
		LIMIT 1`

	p, err := scanProxy(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return p, nil
}

func (r *proxyRepository) GetByID(ctx context.Context, id int64) (*models.ProxyEndpoint, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxy_endpoints WHERE id = $1`

	p, err := scanProxy(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return p, nil
}

// IncrementStats bumps one counter atomically and returns the
// post-increment counts, so concurrent reports never lose updates.
func (r *proxyRepository) IncrementStats(ctx context.Context, id int64, success bool) (int64, int64, error) {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	query := `UPDATE proxy_endpoints
		SET ` + column + ` = ` + column + ` + 1, last_used_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING success_count, failure_count`

	var successCount, failureCount int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&successCount, &failureCount)
	if err != nil {
		slog.Info(err.Error())
		return 0, 0, err
	}
	return successCount, failureCount, nil
}

func (r *proxyRepository) Deactivate(ctx context.Context, id int64) error {
	return r.SetActive(ctx, id, false)
}

func (r *proxyRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE proxy_endpoints SET is_active = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *proxyRepository) UpsertByURL(ctx context.Context, proxyURL, proxyType string) error {
	query := `
		INSERT INTO proxy_endpoints(proxy_url, proxy_type, is_active)
		VALUES ($1, $2, true)
		ON CONFLICT (proxy_url) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, proxyURL, proxyType)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *proxyRepository) List(ctx context.Context) ([]*models.ProxyEndpoint, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxy_endpoints ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var proxies []*models.ProxyEndpoint
	for rows.Next() {
		p, err := scanProxy(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		proxies = append(proxies, p)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return proxies, nil
}

func (r *proxyRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proxy_endpoints WHERE is_active = true`).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}
