package jobs

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/service"
	"github.com/maheshrc27/autoreel/internal/transfer"
)

type fakeProfileRepo struct {
	mu         sync.Mutex
	profiles   map[int64]*models.MonitoredProfile
	touched    map[int64]time.Time
	lastPosted map[int64]time.Time
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		profiles:   make(map[int64]*models.MonitoredProfile),
		touched:    make(map[int64]time.Time),
		lastPosted: make(map[int64]time.Time),
	}
}

func (f *fakeProfileRepo) Create(ctx context.Context, p *models.MonitoredProfile) (int64, error) {
	f.profiles[p.ID] = p
	return p.ID, nil
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id int64) (*models.MonitoredProfile, error) {
	return f.profiles[id], nil
}

func (f *fakeProfileRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.MonitoredProfile, error) {
	var out []*models.MonitoredProfile
	for _, p := range f.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) ListActive(ctx context.Context) ([]*models.MonitoredProfile, error) {
	var out []*models.MonitoredProfile
	for _, p := range f.profiles {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) SetActive(ctx context.Context, id int64, active bool) error {
	f.profiles[id].IsActive = active
	return nil
}

func (f *fakeProfileRepo) SetCheckInterval(ctx context.Context, id int64, minutes int) error {
	f.profiles[id].CheckIntervalMinutes = minutes
	return nil
}

func (f *fakeProfileRepo) TouchChecked(ctx context.Context, id int64, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = checkedAt
	f.profiles[id].LastCheckedAt = sql.NullTime{Time: checkedAt, Valid: true}
	return nil
}

func (f *fakeProfileRepo) SetLastPosted(ctx context.Context, id int64, postedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPosted[id] = postedAt
	return nil
}

func (f *fakeProfileRepo) CountAll(ctx context.Context) (int64, error) {
	return int64(len(f.profiles)), nil
}

func (f *fakeProfileRepo) CountActive(ctx context.Context) (int64, error) {
	out, _ := f.ListActive(ctx)
	return int64(len(out)), nil
}

func (f *fakeProfileRepo) Remove(ctx context.Context, id int64) error {
	delete(f.profiles, id)
	return nil
}

type fakeReelRepo struct {
	mu     sync.Mutex
	reels  map[int64]*models.Reel
	byCode map[string]int64
	nextID int64

	posted map[int64]string
	failed map[int64]string
}

func newFakeReelRepo() *fakeReelRepo {
	return &fakeReelRepo{
		reels:  make(map[int64]*models.Reel),
		byCode: make(map[string]int64),
		posted: make(map[int64]string),
		failed: make(map[int64]string),
	}
}

func (f *fakeReelRepo) seed(reel *models.Reel) *models.Reel {
	f.nextID++
	reel.ID = f.nextID
	if reel.Status == "" {
		reel.Status = models.ReelStatusPending
	}
	f.reels[reel.ID] = reel
	f.byCode[reel.ReelCode] = reel.ID
	return reel
}

func (f *fakeReelRepo) Create(ctx context.Context, reel *models.Reel) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byCode[reel.ReelCode]; ok {
		return 0, nil
	}
	return f.seed(reel).ID, nil
}

func (f *fakeReelRepo) GetByID(ctx context.Context, id int64) (*models.Reel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reels[id], nil
}

func (f *fakeReelRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byCode[code]
	return ok, nil
}

func (f *fakeReelRepo) List(ctx context.Context, userID int64, status string, profileID int64, limit int) ([]*models.Reel, error) {
	return nil, nil
}

func (f *fakeReelRepo) ListPending(ctx context.Context, limit int) ([]*models.Reel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reel
	for _, r := range f.reels {
		if r.Status == models.ReelStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReelRepo) SetMediaPath(ctx context.Context, id int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reels[id].VideoFilePath = path
	return nil
}

func (f *fakeReelRepo) ClearMediaPath(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reels[id].VideoFilePath = ""
	return nil
}

func (f *fakeReelRepo) MarkPosted(ctx context.Context, id int64, postID, postURL string, postedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reel := f.reels[id]
	if reel.Status != models.ReelStatusPending {
		return false, nil
	}
	reel.Status = models.ReelStatusPosted
	reel.TiktokPostID = postID
	reel.TiktokPostURL = postURL
	reel.PostedAt = sql.NullTime{Time: postedAt, Valid: true}
	f.posted[id] = postID
	return true, nil
}

func (f *fakeReelRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reel := f.reels[id]
	if reel.Status != models.ReelStatusPending {
		return false, nil
	}
	reel.Status = models.ReelStatusFailed
	reel.ErrorMessage = errorMessage
	f.failed[id] = errorMessage
	return true, nil
}

func (f *fakeReelRepo) ResetToPending(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reel := f.reels[id]
	if reel.Status != models.ReelStatusFailed {
		return false, nil
	}
	reel.Status = models.ReelStatusPending
	reel.ErrorMessage = ""
	return true, nil
}

func (f *fakeReelRepo) ListTerminalWithMediaBefore(ctx context.Context, cutoff time.Time) ([]*models.Reel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reel
	for _, r := range f.reels {
		if r.Status != models.ReelStatusPending && r.VideoFilePath != "" && r.UpdatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReelRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, r := range f.reels {
		counts[r.Status]++
	}
	return counts, nil
}

func (f *fakeReelRepo) CountByProfile(ctx context.Context, profileID int64) (int64, error) {
	var n int64
	for _, r := range f.reels {
		if r.ProfileID == profileID {
			n++
		}
	}
	return n, nil
}

type fakeInstagram struct {
	mu           sync.Mutex
	reelsByUser  map[string][]*transfer.InstagramReel
	fetchErr     error
	fetched      []string
	downloadErr  error
	downloadSize int64
	downloaded   []string
}

func newFakeInstagram() *fakeInstagram {
	return &fakeInstagram{reelsByUser: make(map[string][]*transfer.InstagramReel)}
}

func (f *fakeInstagram) GetProfileInfo(ctx context.Context, username string) (*transfer.InstagramProfile, error) {
	return &transfer.InstagramProfile{Username: username}, nil
}

func (f *fakeInstagram) GetRecentReels(ctx context.Context, username string, maxCount int) ([]*transfer.InstagramReel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, username)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.reelsByUser[username], nil
}

func (f *fakeInstagram) DownloadVideo(ctx context.Context, videoURL, filePath string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	f.downloaded = append(f.downloaded, videoURL)
	return f.downloadSize, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []int64
}

func (f *fakeDispatcher) DispatchReel(reelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, reelID)
	return nil
}

func discoveryConfig() config.Config {
	return config.Config{
		MaxConcurrentScrapes: 2,
		ReelFetchLimit:       20,
	}
}

func TestDiscoverySkipsProfileInsideInterval(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{
		ID:                   1,
		Username:             "creator",
		IsActive:             true,
		CheckIntervalMinutes: 60,
		LastCheckedAt:        sql.NullTime{Time: time.Now().Add(-10 * time.Minute), Valid: true},
	}
	ig := newFakeInstagram()

	job := NewDiscoveryJob(discoveryConfig(), pr, newFakeReelRepo(), ig, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, ig.fetched, "profile checked 10m ago with a 60m interval must be skipped")
	assert.Empty(t, pr.touched)
}

func TestDiscoveryChecksNeverCheckedProfile(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{
		ID:                   1,
		Username:             "creator",
		IsActive:             true,
		CheckIntervalMinutes: 60,
	}
	ig := newFakeInstagram()

	job := NewDiscoveryJob(discoveryConfig(), pr, newFakeReelRepo(), ig, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"creator"}, ig.fetched)
	assert.Contains(t, pr.touched, int64(1))
}

func TestDiscoveryCreatesOnlyUnseenReels(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{
		ID:                   1,
		Username:             "creator",
		IsActive:             true,
		CheckIntervalMinutes: 60,
	}

	rr := newFakeReelRepo()
	rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", Status: models.ReelStatusPosted})

	takenAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ig := newFakeInstagram()
	ig.reelsByUser["creator"] = []*transfer.InstagramReel{
		{Code: "abc", URL: "https://www.instagram.com/reel/abc/", VideoURL: "https://cdn/abc.mp4", TakenAt: takenAt.Add(-time.Hour)},
		{Code: "def", URL: "https://www.instagram.com/reel/def/", VideoURL: "https://cdn/def.mp4", Caption: "new clip", TakenAt: takenAt},
	}

	dispatcher := &fakeDispatcher{}
	job := NewDiscoveryJob(discoveryConfig(), pr, rr, ig, dispatcher)
	require.NoError(t, job.Run(context.Background()))

	newID, ok := rr.byCode["def"]
	require.True(t, ok, "unseen reel must be recorded")
	created := rr.reels[newID]
	assert.Equal(t, models.ReelStatusPending, created.Status)
	assert.Equal(t, "new clip", created.Caption)
	assert.Equal(t, int64(1), created.ProfileID)

	// The already known code must not be re-created.
	assert.Len(t, rr.reels, 2)

	assert.Equal(t, []int64{newID}, dispatcher.dispatched)
	assert.Equal(t, takenAt, pr.lastPosted[1])
}

func TestDiscoveryTouchesCheckedOnFetchFailure(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{
		ID:                   1,
		Username:             "creator",
		IsActive:             true,
		CheckIntervalMinutes: 60,
	}
	ig := newFakeInstagram()
	ig.fetchErr = errors.New("fetch blocked")

	job := NewDiscoveryJob(discoveryConfig(), pr, newFakeReelRepo(), ig, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Contains(t, pr.touched, int64(1), "last_checked_at must advance even when the fetch fails")
}

func TestDiscoveryRateLimitThrottlesScrapePool(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{ID: 1, Username: "one", IsActive: true, CheckIntervalMinutes: 60}
	pr.profiles[2] = &models.MonitoredProfile{ID: 2, Username: "two", IsActive: true, CheckIntervalMinutes: 60}

	ig := newFakeInstagram()
	ig.fetchErr = &service.RelayError{Kind: service.ErrKindRateLimited, Message: "throttled"}

	backoff := 30 * time.Millisecond
	cfg := config.Config{MaxConcurrentScrapes: 1, ReelFetchLimit: 20, RateLimitBackoff: backoff}

	start := time.Now()
	job := NewDiscoveryJob(cfg, pr, newFakeReelRepo(), ig, nil)
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, ig.fetched, 2, "throttling must not skip profiles")
	assert.GreaterOrEqual(t, time.Since(start), 2*backoff,
		"each throttled check must hold its scrape slot for the backoff")
}

func TestDiscoverySoftLimitStopsNewWork(t *testing.T) {
	pr := newFakeProfileRepo()
	pr.profiles[1] = &models.MonitoredProfile{ID: 1, Username: "creator", IsActive: true, CheckIntervalMinutes: 60}

	ctx := WithSoftDeadline(context.Background(), -time.Second)

	ig := newFakeInstagram()
	job := NewDiscoveryJob(discoveryConfig(), pr, newFakeReelRepo(), ig, nil)
	require.NoError(t, job.Run(ctx))

	assert.Empty(t, ig.fetched, "an expired soft deadline must stop new profile checks")
}
