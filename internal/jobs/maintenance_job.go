package jobs

import (
	"context"
	"log"
	"log/slog"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

type MaintenanceJob struct {
	cfg config.Config
	rr  repository.ReelRepository
	ps  service.ProxyService
	st  MediaStore
}

func NewMaintenanceJob(cfg config.Config, rr repository.ReelRepository, ps service.ProxyService, st MediaStore) *MaintenanceJob {
	return &MaintenanceJob{cfg: cfg, rr: rr, ps: ps, st: st}
}

// RunProxyStats refreshes the endpoint pool from the configured list
// and logs the pool's health. Deactivation of unhealthy endpoints
// happens at report time, not here.
func (j *MaintenanceJob) RunProxyStats(ctx context.Context) error {
	if _, err := j.ps.RefreshPool(ctx); err != nil {
		log.Printf("Proxy pool refresh failed: %v", err)
	}

	proxies, err := j.ps.List(ctx)
	if err != nil {
		return err
	}

	active := 0
	for _, p := range proxies {
		if p.IsActive {
			active++
		}
	}
	log.Printf("Proxy pool: %d endpoints, %d active", len(proxies), active)
	return nil
}

// RunCleanup removes local media for reels that reached a terminal
// state before the retention window. The rows stay; only the files go.
func (j *MaintenanceJob) RunCleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-j.cfg.MediaRetention)

	reels, err := j.rr.ListTerminalWithMediaBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	removed := 0
	for _, reel := range reels {
		if SoftExpired(ctx) {
			break
		}
		if err := j.st.RemoveLocal(reel.VideoFilePath); err != nil {
			slog.Info(err.Error())
			continue
		}
		if err := j.rr.ClearMediaPath(ctx, reel.ID); err != nil {
			slog.Info(err.Error())
			continue
		}
		removed++
	}

	log.Printf("Cleanup sweep: removed media for %d reels", removed)
	return nil
}
