package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
)

type fakeProxyRepo struct {
	endpoints   map[int64]*models.ProxyEndpoint
	deactivated []int64
	reactivated []int64
	upserted    map[string]string
}

func newFakeProxyRepo() *fakeProxyRepo {
	return &fakeProxyRepo{
		endpoints: make(map[int64]*models.ProxyEndpoint),
		upserted:  make(map[string]string),
	}
}

func (f *fakeProxyRepo) GetActiveBest(ctx context.Context) (*models.ProxyEndpoint, error) {
	var best *models.ProxyEndpoint
	for _, p := range f.endpoints {
		if !p.IsActive {
			continue
		}
		if best == nil || p.SuccessCount > best.SuccessCount {
			best = p
		}
	}
	return best, nil
}

func (f *fakeProxyRepo) GetByID(ctx context.Context, id int64) (*models.ProxyEndpoint, error) {
	return f.endpoints[id], nil
}

func (f *fakeProxyRepo) IncrementStats(ctx context.Context, id int64, success bool) (int64, int64, error) {
	p := f.endpoints[id]
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	return p.SuccessCount, p.FailureCount, nil
}

func (f *fakeProxyRepo) Deactivate(ctx context.Context, id int64) error {
	f.endpoints[id].IsActive = false
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeProxyRepo) SetActive(ctx context.Context, id int64, active bool) error {
	f.endpoints[id].IsActive = active
	if active {
		f.reactivated = append(f.reactivated, id)
	}
	return nil
}

func (f *fakeProxyRepo) UpsertByURL(ctx context.Context, proxyURL, proxyType string) error {
	f.upserted[proxyURL] = proxyType
	return nil
}

func (f *fakeProxyRepo) List(ctx context.Context) ([]*models.ProxyEndpoint, error) {
	var out []*models.ProxyEndpoint
	for _, p := range f.endpoints {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProxyRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	for _, p := range f.endpoints {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

func TestProxyReportDeactivatesAfterThreshold(t *testing.T) {
	repo := newFakeProxyRepo()
	repo.endpoints[1] = &models.ProxyEndpoint{
		ID:           1,
		ProxyURL:     "http://10.0.0.1:8080",
		IsActive:     true,
		SuccessCount: 2,
		FailureCount: 9,
	}
	svc := NewProxyService(config.Config{}, repo)

	// 2 successes + 9 failures = 11 attempts, ratio 9/11 ≈ 0.82. One
	// more failure crosses both the attempt floor and the ratio cap.
	err := svc.Report(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, repo.deactivated)
	assert.False(t, repo.endpoints[1].IsActive)
}

func TestProxyReportKeepsEndpointUnderAttemptFloor(t *testing.T) {
	repo := newFakeProxyRepo()
	repo.endpoints[1] = &models.ProxyEndpoint{
		ID:           1,
		ProxyURL:     "http://10.0.0.1:8080",
		IsActive:     true,
		SuccessCount: 0,
		FailureCount: 5,
	}
	svc := NewProxyService(config.Config{}, repo)

	// All failures, but only 6 attempts total: too few to judge.
	err := svc.Report(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Empty(t, repo.deactivated)
	assert.True(t, repo.endpoints[1].IsActive)
}

func TestProxyReportSuccessNeverDeactivates(t *testing.T) {
	repo := newFakeProxyRepo()
	repo.endpoints[1] = &models.ProxyEndpoint{
		ID:           1,
		ProxyURL:     "http://10.0.0.1:8080",
		IsActive:     true,
		SuccessCount: 0,
		FailureCount: 50,
	}
	svc := NewProxyService(config.Config{}, repo)

	err := svc.Report(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Empty(t, repo.deactivated)
	assert.True(t, repo.endpoints[1].IsActive)
}

func TestProxyAcquireSkipsInactive(t *testing.T) {
	repo := newFakeProxyRepo()
	repo.endpoints[1] = &models.ProxyEndpoint{ID: 1, IsActive: false, SuccessCount: 100}
	repo.endpoints[2] = &models.ProxyEndpoint{ID: 2, IsActive: true, SuccessCount: 3}
	svc := NewProxyService(config.Config{}, repo)

	endpoint, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, endpoint)
	assert.Equal(t, int64(2), endpoint.ID)
}

func TestProxyAcquireEmptyPool(t *testing.T) {
	svc := NewProxyService(config.Config{}, newFakeProxyRepo())

	endpoint, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	assert.Nil(t, endpoint)
}

func TestRefreshPoolParsesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# rotating pool\nhttp://10.0.0.1:8080\nsocks5://10.0.0.2:1080\n\nhttp://10.0.0.3:3128\n"))
	}))
	defer server.Close()

	repo := newFakeProxyRepo()
	svc := NewProxyService(config.Config{ProxyListURL: server.URL}, repo)

	added, err := svc.RefreshPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, models.ProxyTypeHTTP, repo.upserted["http://10.0.0.1:8080"])
	assert.Equal(t, models.ProxyTypeSOCKS5, repo.upserted["socks5://10.0.0.2:1080"])
	assert.Equal(t, models.ProxyTypeHTTP, repo.upserted["http://10.0.0.3:3128"])
}

func TestRefreshPoolNoURLConfigured(t *testing.T) {
	repo := newFakeProxyRepo()
	svc := NewProxyService(config.Config{}, repo)

	added, err := svc.RefreshPool(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, repo.upserted)
}

func TestClientForNilEndpointIsDirect(t *testing.T) {
	svc := NewProxyService(config.Config{}, newFakeProxyRepo())

	client := svc.ClientFor(nil, 5*time.Second)
	require.NotNil(t, client)
	assert.Nil(t, client.Transport)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestClientForRoutesThroughProxy(t *testing.T) {
	svc := NewProxyService(config.Config{}, newFakeProxyRepo())

	client := svc.ClientFor(&models.ProxyEndpoint{ProxyURL: "http://10.0.0.1:8080"}, 5*time.Second)
	require.NotNil(t, client.Transport)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)

	proxyURL, err := transport.Proxy(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.NoError(t, err)
	require.NotNil(t, proxyURL)
	assert.Equal(t, "http://10.0.0.1:8080", proxyURL.String())
}
