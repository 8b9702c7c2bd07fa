package jobs

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

// ReelDispatcher hands a freshly discovered reel to the worker pool so
// it gets relayed without waiting for the next relay sweep.
type ReelDispatcher interface {
	DispatchReel(reelID int64) error
}

type DiscoveryJob struct {
	cfg        config.Config
	pr         repository.ProfileRepository
	rr         repository.ReelRepository
	ig         service.InstagramService
	dispatcher ReelDispatcher
}

func NewDiscoveryJob(
	cfg config.Config,
	pr repository.ProfileRepository,
	rr repository.ReelRepository,
	ig service.InstagramService,
	dispatcher ReelDispatcher) *DiscoveryJob {
	return &DiscoveryJob{
		cfg:        cfg,
		pr:         pr,
		rr:         rr,
		ig:         ig,
		dispatcher: dispatcher,
	}
}

// Run sweeps every active profile whose check interval has elapsed.
// Failures are isolated per profile; one broken account never aborts
// the rest of the sweep.
func (j *DiscoveryJob) Run(ctx context.Context) error {
	sweepStart := time.Now()

	profiles, err := j.pr.ListActive(ctx)
	if err != nil {
		return err
	}

	var due []*models.MonitoredProfile
	for _, p := range profiles {
		if p.Due(sweepStart) {
			due = append(due, p)
		}
	}

	log.Printf("Discovery sweep: %d of %d active profiles due", len(due), len(profiles))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, j.cfg.MaxConcurrentScrapes)

	for i, profile := range due {
		if SoftExpired(ctx) {
			log.Printf("Discovery sweep winding down at soft limit, %d profiles left unswept", len(due)-i)
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(profile *models.MonitoredProfile) {
			defer wg.Done()
			defer func() { <-semaphore }()

			j.scrapeDelay(ctx)
			if err := j.checkProfile(ctx, profile, sweepStart); err != nil {
				log.Printf("Error checking profile %d (%s): %v", profile.ID, profile.Username, err)
				if service.KindOf(err) == service.ErrKindRateLimited {
					// Hold the semaphore slot so the pool slows down
					// while the source is throttling.
					log.Printf("Backing off %s after rate limit on %s", j.cfg.RateLimitBackoff, profile.Username)
					pause(ctx, j.cfg.RateLimitBackoff)
				}
			}
		}(profile)
	}

	wg.Wait()
	return nil
}

// scrapeDelay spaces requests out with a random pause inside the
// configured window, so sweeps don't hammer the source in bursts.
func (j *DiscoveryJob) scrapeDelay(ctx context.Context) {
	min := j.cfg.ScrapeDelayMin
	max := j.cfg.ScrapeDelayMax
	if max <= min {
		return
	}
	delay := min + time.Duration(rand.Int63n(int64(max-min)))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (j *DiscoveryJob) checkProfile(ctx context.Context, profile *models.MonitoredProfile, sweepStart time.Time) error {
	reels, err := j.ig.GetRecentReels(ctx, profile.Username, j.cfg.ReelFetchLimit)

	// last_checked_at moves regardless of outcome so a flapping
	// profile doesn't get rechecked every sweep.
	if touchErr := j.pr.TouchChecked(ctx, profile.ID, sweepStart); touchErr != nil {
		slog.Info(touchErr.Error())
	}

	if err != nil {
		return err
	}

	var newest time.Time
	created := 0
	for _, reel := range reels {
		exists, err := j.rr.ExistsByCode(ctx, reel.Code)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if exists {
			continue
		}

		id, err := j.rr.Create(ctx, &models.Reel{
			ProfileID: profile.ID,
			ReelCode:  reel.Code,
			ReelURL:   reel.URL,
			VideoURL:  reel.VideoURL,
			Caption:   reel.Caption,
		})
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if id == 0 {
			// Another sweep inserted this code first.
			continue
		}

		created++
		if reel.TakenAt.After(newest) {
			newest = reel.TakenAt
		}

		if j.dispatcher != nil {
			if err := j.dispatcher.DispatchReel(id); err != nil {
				slog.Info(err.Error())
			}
		}
	}

	if created > 0 {
		log.Printf("New reels detected for %s: %d", profile.Username, created)
		if err := j.pr.SetLastPosted(ctx, profile.ID, newest); err != nil {
			slog.Info(err.Error())
		}
	}

	return nil
}
