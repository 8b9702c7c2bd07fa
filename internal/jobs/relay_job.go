package jobs

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
)

// MediaStore is the slice of the storage service the relay needs.
type MediaStore interface {
	MediaPath(code string) (string, error)
	ArchiveToR2(ctx context.Context, key, path string) error
	RemoveLocal(path string) error
}

type RelayJob struct {
	cfg config.Config
	rr  repository.ReelRepository
	pr  repository.ProfileRepository
	ig  service.InstagramService
	tt  service.TiktokService
	st  MediaStore
}

func NewRelayJob(
	cfg config.Config,
	rr repository.ReelRepository,
	pr repository.ProfileRepository,
	ig service.InstagramService,
	tt service.TiktokService,
	st MediaStore) *RelayJob {
	return &RelayJob{
		cfg: cfg,
		rr:  rr,
		pr:  pr,
		ig:  ig,
		tt:  tt,
		st:  st,
	}
}

const relayBatchSize = 50

// Run picks up pending reels the per-item dispatch missed. Each item is
// processed independently; the sweep itself never fails an item batch.
func (j *RelayJob) Run(ctx context.Context) error {
	reels, err := j.rr.ListPending(ctx, relayBatchSize)
	if err != nil {
		return err
	}

	log.Printf("Relay sweep: %d pending reels", len(reels))

	for i, reel := range reels {
		if SoftExpired(ctx) {
			log.Printf("Relay sweep winding down at soft limit, %d reels left", len(reels)-i)
			break
		}
		if err := j.Process(ctx, reel.ID); err != nil {
			log.Printf("Error relaying reel %d (%s): %v", reel.ID, reel.ReelCode, err)
			if service.KindOf(err) == service.ErrKindRateLimited && i < len(reels)-1 {
				log.Printf("Relay sweep backing off %s, provider is throttling", j.cfg.RateLimitBackoff)
				if !pause(ctx, j.cfg.RateLimitBackoff) {
					break
				}
			}
		}
	}

	return nil
}

// Process drives one reel through pending -> posted or pending -> failed.
// Reprocessing a terminal reel is a no-op. A missing or invalid
// credential leaves the reel pending: that is the account's problem,
// not the item's, and the item becomes eligible again once the account
// is re-linked.
func (j *RelayJob) Process(ctx context.Context, reelID int64) error {
	reel, err := j.rr.GetByID(ctx, reelID)
	if err != nil {
		return err
	}
	if reel == nil {
		return fmt.Errorf("reel %d not found", reelID)
	}
	if reel.Status != models.ReelStatusPending {
		return nil
	}

	profile, err := j.pr.GetByID(ctx, reel.ProfileID)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("profile %d not found for reel %d", reel.ProfileID, reelID)
	}

	accessToken, err := j.tt.AccessToken(ctx, profile.UserID)
	if err != nil {
		if service.KindOf(err) == service.ErrKindAuth {
			log.Printf("Reel %d left pending: account %d needs re-authorization", reelID, profile.UserID)
			return nil
		}
		return err
	}

	filePath := reel.VideoFilePath
	if filePath == "" {
		filePath, err = j.st.MediaPath(reel.ReelCode)
		if err != nil {
			return err
		}

		if _, err := j.ig.DownloadVideo(ctx, reel.VideoURL, filePath); err != nil {
			if service.KindOf(err) == service.ErrKindPermanent {
				j.markFailed(ctx, reelID, err)
				return nil
			}
			// Transient download problems resolve on a later sweep.
			return err
		}

		if err := j.rr.SetMediaPath(ctx, reelID, filePath); err != nil {
			slog.Info(err.Error())
		}
		if err := j.st.ArchiveToR2(ctx, reel.ReelCode+".mp4", filePath); err != nil {
			slog.Info(err.Error())
		}
	}

	postID, err := j.tt.PublishVideo(ctx, profile.UserID, accessToken, filePath, reel.Caption)
	if err != nil {
		switch service.KindOf(err) {
		case service.ErrKindAuth:
			log.Printf("Reel %d left pending: publish rejected the token for account %d", reelID, profile.UserID)
			return nil
		case service.ErrKindPermanent:
			j.markFailed(ctx, reelID, err)
			return nil
		default:
			return err
		}
	}

	postURL := fmt.Sprintf("https://www.tiktok.com/@/video/%s", postID)
	transitioned, err := j.rr.MarkPosted(ctx, reelID, postID, postURL, time.Now().UTC())
	if err != nil {
		return err
	}
	if !transitioned {
		log.Printf("Reel %d already terminal; another worker finished it", reelID)
		return nil
	}

	log.Printf("Reel %s posted to TikTok as %s", reel.ReelCode, postID)
	return nil
}

func (j *RelayJob) markFailed(ctx context.Context, reelID int64, cause error) {
	transitioned, err := j.rr.MarkFailed(ctx, reelID, cause.Error())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if !transitioned {
		log.Printf("Reel %d already terminal; failure not recorded", reelID)
	}
}
