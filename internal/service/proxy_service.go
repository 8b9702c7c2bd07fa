package service

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
)

type ProxyService interface {
	Acquire(ctx context.Context) (*models.ProxyEndpoint, error)
	Report(ctx context.Context, endpointID int64, success bool) error
	Reactivate(ctx context.Context, endpointID int64) error
	RefreshPool(ctx context.Context) (int, error)
	List(ctx context.Context) ([]*models.ProxyEndpoint, error)
	ClientFor(endpoint *models.ProxyEndpoint, timeout time.Duration) *http.Client
}

type proxyService struct {
	cfg config.Config
	pr  repository.ProxyRepository
}

func NewProxyService(cfg config.Config, pr repository.ProxyRepository) ProxyService {
	return &proxyService{cfg: cfg, pr: pr}
}

// Acquire returns the healthiest active endpoint, or nil when the pool
// is exhausted. Callers decide whether to proceed unproxied.
func (s *proxyService) Acquire(ctx context.Context) (*models.ProxyEndpoint, error) {
	return s.pr.GetActiveBest(ctx)
}

// Report records a call outcome. After a failure the endpoint is
// deactivated once it has more than ProxyMinAttempts total attempts and
// its failure ratio exceeds ProxyMaxFailureRatio. A success never
// reactivates an endpoint; that is an explicit admin action.
func (s *proxyService) Report(ctx context.Context, endpointID int64, success bool) error {
	successCount, failureCount, err := s.pr.IncrementStats(ctx, endpointID, success)
	if err != nil {
		return err
	}
	if success {
		return nil
	}

	total := successCount + failureCount
	if total > models.ProxyMinAttempts && float64(failureCount)/float64(total) > models.ProxyMaxFailureRatio {
		log.Printf("Deactivating proxy %d: %d failures out of %d attempts", endpointID, failureCount, total)
		return s.pr.Deactivate(ctx, endpointID)
	}
	return nil
}

func (s *proxyService) Reactivate(ctx context.Context, endpointID int64) error {
	return s.pr.SetActive(ctx, endpointID, true)
}

// RefreshPool pulls the configured proxy list (one address per line)
// and upserts unseen endpoints. Existing endpoints keep their counters.
func (s *proxyService) RefreshPool(ctx context.Context) (int, error) {
	if s.cfg.ProxyListURL == "" {
		return 0, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ProxyListURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, FromHTTPStatus(resp.StatusCode, "proxy list fetch failed")
	}

	added := 0
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxyType := models.ProxyTypeHTTP
		if u, err := url.Parse(line); err == nil && u.Scheme == "socks5" {
			proxyType = models.ProxyTypeSOCKS5
		}
		if err := s.pr.UpsertByURL(ctx, line, proxyType); err != nil {
			continue
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		slog.Info(err.Error())
		return added, err
	}

	log.Printf("Proxy pool refreshed: %d entries processed", added)
	return added, nil
}

func (s *proxyService) List(ctx context.Context) ([]*models.ProxyEndpoint, error) {
	return s.pr.List(ctx)
}

// ClientFor builds an HTTP client routed through the endpoint; a nil
// endpoint yields a direct client.
func (s *proxyService) ClientFor(endpoint *models.ProxyEndpoint, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if endpoint == nil {
		return client
	}

	proxyURL, err := url.Parse(endpoint.ProxyURL)
	if err != nil {
		slog.Info(err.Error())
		return client
	}

	client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return client
}
