package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/transfer"
)

const (
	instagramBaseURL  = "https://www.instagram.com"
	instagramWebAppID = "936619743392459"

	profileRequestTimeout  = 30 * time.Second
	downloadRequestTimeout = 2 * time.Minute
)

type InstagramService interface {
	GetProfileInfo(ctx context.Context, username string) (*transfer.InstagramProfile, error)
	GetRecentReels(ctx context.Context, username string, maxCount int) ([]*transfer.InstagramReel, error)
	DownloadVideo(ctx context.Context, videoURL, filePath string) (int64, error)
}

type instagramService struct {
	cfg     config.Config
	proxy   ProxyService
	baseURL string
}

func NewInstagramService(cfg config.Config, proxy ProxyService) InstagramService {
	return &instagramService{
		cfg:     cfg,
		proxy:   proxy,
		baseURL: instagramBaseURL,
	}
}

// fetchWebProfile performs one proxied profile request and records the
// outcome on the endpoint that served it. When the proxy pool is
// exhausted the call proceeds unproxied; scraping without egress
// rotation is degraded but still correct.
func (s *instagramService) fetchWebProfile(ctx context.Context, username string) (*transfer.IgWebProfileResponse, error) {
	endpoint, err := s.proxy.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		log.Printf("No active proxy available, fetching %s directly", username)
	}

	requestURL := fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", s.baseURL, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("X-IG-App-ID", instagramWebAppID)
	req.Header.Set("Accept", "application/json")

	client := s.proxy.ClientFor(endpoint, profileRequestTimeout)
	resp, err := client.Do(req)
	if err != nil {
		s.reportProxy(ctx, endpoint, false)
		slog.Info(err.Error())
		return nil, Transient("instagram profile request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.reportProxy(ctx, endpoint, false)
		return nil, FromHTTPStatus(resp.StatusCode, fmt.Sprintf("instagram returned status %d for %s", resp.StatusCode, username))
	}

	var profile transfer.IgWebProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		s.reportProxy(ctx, endpoint, false)
		slog.Info(err.Error())
		return nil, Transient("failed to decode instagram profile response", err)
	}

	s.reportProxy(ctx, endpoint, true)
	return &profile, nil
}

func (s *instagramService) reportProxy(ctx context.Context, endpoint *models.ProxyEndpoint, success bool) {
	if endpoint == nil {
		return
	}
	if err := s.proxy.Report(ctx, endpoint.ID, success); err != nil {
		slog.Info(err.Error())
	}
}

func (s *instagramService) GetProfileInfo(ctx context.Context, username string) (*transfer.InstagramProfile, error) {
	raw, err := s.fetchWebProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	user := raw.Data.User
	if user.Username == "" {
		return nil, Permanent(fmt.Sprintf("instagram profile %s not found", username), nil)
	}

	info := &transfer.InstagramProfile{
		Username:          user.Username,
		DisplayName:       user.FullName,
		Biography:         user.Biography,
		ProfilePictureURL: user.ProfilePicURL,
		FollowersCount:    user.FollowedBy.Count,
		PostsCount:        user.TimelineMedia.Count,
		IsPrivate:         user.IsPrivate,
		IsVerified:        user.IsVerified,
	}

	log.Printf("Profile info retrieved for %s: %d posts", username, info.PostsCount)
	return info, nil
}

// GetRecentReels lists the account's recent video posts, newest first,
// bounded by maxCount.
func (s *instagramService) GetRecentReels(ctx context.Context, username string, maxCount int) ([]*transfer.InstagramReel, error) {
	raw, err := s.fetchWebProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	user := raw.Data.User
	if user.Username == "" {
		return nil, Permanent(fmt.Sprintf("instagram profile %s not found", username), nil)
	}
	if user.IsPrivate {
		return nil, Permanent(fmt.Sprintf("instagram profile %s is private", username), nil)
	}

	var reels []*transfer.InstagramReel
	for _, edge := range user.TimelineMedia.Edges {
		node := edge.Node
		if !node.IsVideo {
			continue
		}

		caption := ""
		if len(node.Caption.Edges) > 0 {
			caption = node.Caption.Edges[0].Node.Text
		}

		reels = append(reels, &transfer.InstagramReel{
			Code:          node.Shortcode,
			URL:           fmt.Sprintf("%s/reel/%s/", s.baseURL, node.Shortcode),
			Caption:       caption,
			VideoURL:      node.VideoURL,
			ThumbnailURL:  node.DisplayURL,
			LikesCount:    node.LikedBy.Count,
			CommentsCount: node.Comments.Count,
			TakenAt:       time.Unix(node.TakenAt, 0).UTC(),
			Duration:      node.VideoDuration,
		})
		if len(reels) >= maxCount {
			break
		}
	}

	log.Printf("Reels retrieved for %s: %d", username, len(reels))
	return reels, nil
}

// DownloadVideo streams the media to filePath, reporting the proxy
// outcome and enforcing the configured size ceiling.
func (s *instagramService) DownloadVideo(ctx context.Context, videoURL, filePath string) (int64, error) {
	endpoint, err := s.proxy.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if endpoint == nil {
		log.Printf("No active proxy available, downloading directly")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	client := s.proxy.ClientFor(endpoint, downloadRequestTimeout)
	resp, err := client.Do(req)
	if err != nil {
		s.reportProxy(ctx, endpoint, false)
		slog.Info(err.Error())
		return 0, Transient("video download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.reportProxy(ctx, endpoint, false)
		return 0, FromHTTPStatus(resp.StatusCode, fmt.Sprintf("video download returned status %d", resp.StatusCode))
	}

	out, err := os.Create(filePath)
	if err != nil {
		s.reportProxy(ctx, endpoint, false)
		slog.Info(err.Error())
		return 0, err
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(resp.Body, s.cfg.MaxFileSize+1))
	if err != nil {
		s.reportProxy(ctx, endpoint, false)
		os.Remove(filePath)
		slog.Info(err.Error())
		return 0, Transient("video download interrupted", err)
	}
	if written > s.cfg.MaxFileSize {
		s.reportProxy(ctx, endpoint, true)
		os.Remove(filePath)
		return 0, Permanent(fmt.Sprintf("video exceeds size ceiling of %d bytes", s.cfg.MaxFileSize), nil)
	}

	s.reportProxy(ctx, endpoint, true)
	log.Printf("Video downloaded to %s (%d bytes)", filePath, written)
	return written, nil
}
