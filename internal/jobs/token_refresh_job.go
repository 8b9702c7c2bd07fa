package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

type TokenRefreshJob struct {
	cfg config.Config
	cr  repository.CredentialsRepository
	tt  service.TiktokService
}

func NewTokenRefreshJob(cfg config.Config, cr repository.CredentialsRepository, tt service.TiktokService) *TokenRefreshJob {
	return &TokenRefreshJob{cfg: cfg, cr: cr, tt: tt}
}

// Run refreshes every credential inside the expiry margin. Rotation is
// idempotent; refreshing early just yields a fresh pair. Per-credential
// failures are logged and never halt the sweep.
func (j *TokenRefreshJob) Run(ctx context.Context) error {
	deadline := time.Now().Add(j.cfg.TokenRefreshMargin)

	credentials, err := j.cr.ListExpiringBefore(ctx, deadline)
	if err != nil {
		return err
	}

	log.Printf("Token refresh sweep: %d credentials near expiry", len(credentials))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for _, credential := range credentials {
		if SoftExpired(ctx) {
			log.Printf("Token refresh sweep winding down at soft limit")
			break
		}
		if credential.Status == models.CredentialStatusNeedsReauth {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(credential *models.TikTokCredential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.tt.Refresh(ctx, credential); err != nil {
				log.Printf("Unable to refresh TikTok tokens for user %d: %v", credential.UserID, err)
			}
		}(credential)
	}

	wg.Wait()
	return nil
}
