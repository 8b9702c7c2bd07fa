package jobs

import (
	"context"
	"path/filepath"
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

type fakeTiktok struct {
	mu             sync.Mutex
	accessTokenErr error
	publishErr     error
	publishedID    string
	published      []string
	attempts       int
	refreshErr     error
	refreshed      []int64
}

func (f *fakeTiktok) AuthURL(state string) string { return "" }

func (f *fakeTiktok) Link(ctx context.Context, code string, userID int64) error { return nil }

func (f *fakeTiktok) AccessToken(ctx context.Context, userID int64) (string, error) {
	if f.accessTokenErr != nil {
		return "", f.accessTokenErr
	}
	return "access-token", nil
}

func (f *fakeTiktok) Refresh(ctx context.Context, credential *models.TikTokCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.refreshed = append(f.refreshed, credential.UserID)
	return nil
}

func (f *fakeTiktok) Revoke(ctx context.Context, userID int64) error { return nil }

func (f *fakeTiktok) GetCredential(ctx context.Context, userID int64) (*models.TikTokCredential, error) {
	return nil, nil
}

func (f *fakeTiktok) ListVideos(ctx context.Context, userID int64, cursor int64, maxCount int) (*transfer.VideoListData, error) {
	return nil, nil
}

func (f *fakeTiktok) PublishVideo(ctx context.Context, userID int64, accessToken, filePath, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, filePath)
	return f.publishedID, nil
}

type fakeMediaStore struct {
	dir      string
	archived []string
	removed  []string
}

func (f *fakeMediaStore) MediaPath(code string) (string, error) {
	return filepath.Join(f.dir, code+".mp4"), nil
}

func (f *fakeMediaStore) ArchiveToR2(ctx context.Context, key, path string) error {
	f.archived = append(f.archived, key)
	return nil
}

func (f *fakeMediaStore) RemoveLocal(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

type relayFixture struct {
	pr *fakeProfileRepo
	rr *fakeReelRepo
	ig *fakeInstagram
	tt *fakeTiktok
	st *fakeMediaStore
}

func newRelayFixture(t *testing.T) (*RelayJob, *relayFixture) {
	t.Helper()
	f := &relayFixture{
		pr: newFakeProfileRepo(),
		rr: newFakeReelRepo(),
		ig: newFakeInstagram(),
		tt: &fakeTiktok{publishedID: "7300000001"},
		st: &fakeMediaStore{dir: t.TempDir()},
	}
	f.pr.profiles[1] = &models.MonitoredProfile{ID: 1, UserID: 42, Username: "creator", IsActive: true}
	f.ig.downloadSize = 1024

	job := NewRelayJob(config.Config{}, f.rr, f.pr, f.ig, f.tt, f.st)
	return job, f
}

func TestRelayNoCredentialLeavesReelPending(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.tt.accessTokenErr = service.AuthFailure("no TikTok credential", nil)

	require.NoError(t, job.Process(context.Background(), reel.ID))

	assert.Equal(t, models.ReelStatusPending, f.rr.reels[reel.ID].Status)
	assert.Empty(t, f.tt.published, "publish must not be attempted without a credential")
	assert.Empty(t, f.ig.downloaded, "download must not be attempted without a credential")
}

func TestRelaySuccessMarksPosted(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4", Caption: "hi"})

	require.NoError(t, job.Process(context.Background(), reel.ID))

	stored := f.rr.reels[reel.ID]
	assert.Equal(t, models.ReelStatusPosted, stored.Status)
	assert.Equal(t, "7300000001", stored.TiktokPostID)
	assert.Equal(t, "https://www.tiktok.com/@/video/7300000001", stored.TiktokPostURL)
	assert.True(t, stored.PostedAt.Valid)

	assert.Equal(t, []string{"https://cdn/abc.mp4"}, f.ig.downloaded)
	assert.NotEmpty(t, stored.VideoFilePath)
	assert.Equal(t, []string{"abc.mp4"}, f.st.archived)
	assert.Len(t, f.tt.published, 1)
}

func TestRelayTerminalReelIsNoOp(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", Status: models.ReelStatusPosted})

	require.NoError(t, job.Process(context.Background(), reel.ID))

	assert.Empty(t, f.tt.published)
	assert.Empty(t, f.ig.downloaded)
}

func TestRelayPermanentPublishErrorMarksFailed(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.tt.publishErr = service.Permanent("video_format_check_failed", nil)

	require.NoError(t, job.Process(context.Background(), reel.ID))

	stored := f.rr.reels[reel.ID]
	assert.Equal(t, models.ReelStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "video_format_check_failed")
}

func TestRelayAuthPublishErrorLeavesPending(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.tt.publishErr = service.AuthFailure("token rejected", nil)

	require.NoError(t, job.Process(context.Background(), reel.ID))

	assert.Equal(t, models.ReelStatusPending, f.rr.reels[reel.ID].Status)
}

func TestRelayTransientDownloadErrorKeepsPending(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.ig.downloadErr = service.Transient("timeout", nil)

	err := job.Process(context.Background(), reel.ID)
	require.Error(t, err)

	assert.Equal(t, models.ReelStatusPending, f.rr.reels[reel.ID].Status)
	assert.Empty(t, f.tt.published)
}

func TestRelayPermanentDownloadErrorMarksFailed(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.ig.downloadErr = service.Permanent("video exceeds size ceiling", nil)

	require.NoError(t, job.Process(context.Background(), reel.ID))

	assert.Equal(t, models.ReelStatusFailed, f.rr.reels[reel.ID].Status)
	assert.Empty(t, f.tt.published)
}

func TestRelayRateLimitPausesBeforeNextReel(t *testing.T) {
	_, f := newRelayFixture(t)
	f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "abc", VideoURL: "https://cdn/abc.mp4"})
	f.rr.seed(&models.Reel{ProfileID: 1, ReelCode: "def", VideoURL: "https://cdn/def.mp4"})
	f.tt.publishErr = &service.RelayError{Kind: service.ErrKindRateLimited, Message: "throttled"}

	backoff := 40 * time.Millisecond
	job := NewRelayJob(config.Config{RateLimitBackoff: backoff}, f.rr, f.pr, f.ig, f.tt, f.st)

	start := time.Now()
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 2, f.tt.attempts, "the sweep still works through the batch")
	assert.GreaterOrEqual(t, time.Since(start), backoff, "sweep must pause after a throttled reel")
	for _, reel := range f.rr.reels {
		assert.Equal(t, models.ReelStatusPending, reel.Status)
	}
}

func TestRelaySkipsDownloadWhenMediaAlreadyLocal(t *testing.T) {
	job, f := newRelayFixture(t)
	reel := f.rr.seed(&models.Reel{
		ProfileID:     1,
		ReelCode:      "abc",
		VideoURL:      "https://cdn/abc.mp4",
		VideoFilePath: filepath.Join(f.st.dir, "abc.mp4"),
	})

	require.NoError(t, job.Process(context.Background(), reel.ID))

	assert.Empty(t, f.ig.downloaded, "existing media must not be re-downloaded")
	assert.Equal(t, models.ReelStatusPosted, f.rr.reels[reel.ID].Status)
}
