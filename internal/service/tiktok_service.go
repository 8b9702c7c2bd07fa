package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/models"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/transfer"
	"github.com/maheshrc27/autoreel/pkg/utils"
)

const (
	tiktokBaseURL = "https://open.tiktokapis.com"
	tiktokAuthURL = "https://www.tiktok.com/v2/auth/authorize"

	tiktokScopes = "user.info.basic,video.list,video.publish,video.upload"

	// Publish status polling bounds: 10 attempts with exponential
	// backoff starting at 2s covers the provider's usual processing
	// window without holding a worker for more than ~2 minutes.
	publishPollAttempts     = 10
	publishPollInitialDelay = 2 * time.Second
	publishPollMaxDelay     = 30 * time.Second
)

type TiktokService interface {
	AuthURL(state string) string
	Link(ctx context.Context, code string, userID int64) error
	AccessToken(ctx context.Context, userID int64) (string, error)
	Refresh(ctx context.Context, credential *models.TikTokCredential) error
	Revoke(ctx context.Context, userID int64) error
	GetCredential(ctx context.Context, userID int64) (*models.TikTokCredential, error)
	ListVideos(ctx context.Context, userID int64, cursor int64, maxCount int) (*transfer.VideoListData, error)
	PublishVideo(ctx context.Context, userID int64, accessToken, filePath, caption string) (string, error)
}

type tiktokService struct {
	cfg       config.Config
	cr        repository.CredentialsRepository
	baseURL   string
	client    *http.Client
	pollDelay time.Duration
}

func NewTiktokService(cfg config.Config, cr repository.CredentialsRepository) TiktokService {
	return &tiktokService{
		cfg:       cfg,
		cr:        cr,
		baseURL:   tiktokBaseURL,
		client:    &http.Client{Timeout: time.Minute},
		pollDelay: publishPollInitialDelay,
	}
}

func (s *tiktokService) AuthURL(state string) string {
	params := url.Values{}
	params.Add("client_key", s.cfg.TiktokClientKey)
	params.Add("scope", tiktokScopes)
	params.Add("response_type", "code")
	params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", tiktokAuthURL, params.Encode())
}

// Link exchanges the authorization code, verifies identity via the
// user-info endpoint and upserts the credential for the user.
func (s *tiktokService) Link(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.exchangeToken(ctx, url.Values{
		"client_key":    {s.cfg.TiktokClientKey},
		"client_secret": {s.cfg.TiktokClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {s.cfg.TiktokRedirectURI},
	})
	if err != nil {
		return err
	}

	userInfo, err := s.userInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	log.Printf("TikTok account linked: open_id=%s display_name=%s", userInfo.OpenID, userInfo.DisplayName)

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	credential := &models.TikTokCredential{
		UserID:       userID,
		AccessToken:  encryptedAccessToken,
		RefreshToken: encryptedRefreshToken,
		ExpiresIn:    tokenResponse.ExpiresIn,
		OpenID:       userInfo.OpenID,
		Scope:        tokenResponse.Scope,
	}

	return s.cr.Upsert(ctx, credential)
}

func (s *tiktokService) exchangeToken(ctx context.Context, form url.Values) (*transfer.TiktokTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v2/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, Transient("token endpoint request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Info("TikTok token endpoint returned non-200 status")
		return nil, FromHTTPStatus(resp.StatusCode, string(body))
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.Error != "" {
		return nil, AuthFailure(fmt.Sprintf("token exchange rejected: %s (%s)", tokenResponse.Error, tokenResponse.ErrorDescription), nil)
	}
	if tokenResponse.AccessToken == "" {
		return nil, AuthFailure("token exchange returned no access token", nil)
	}

	return &tokenResponse, nil
}

func (s *tiktokService) userInfo(ctx context.Context, accessToken string) (*transfer.TiktokUser, error) {
	requestURL := s.baseURL + "/v2/user/info/?fields=open_id,avatar_url,display_name,username"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, Transient("user info request failed", err)
	}
	defer resp.Body.Close()

	var result transfer.TikTokUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if !result.Error.OK() {
		return nil, AuthFailure(fmt.Sprintf("user info rejected: %s", result.Error.Message), nil)
	}

	return &result.Data.User, nil
}

// AccessToken resolves the user's current access token, refreshing it
// first when it is inside the expiry margin. A missing or flagged
// credential is an auth failure; the caller must not attempt a publish.
func (s *tiktokService) AccessToken(ctx context.Context, userID int64) (string, error) {
	credential, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if credential == nil {
		return "", AuthFailure(fmt.Sprintf("no TikTok credential for user %d", userID), nil)
	}
	if credential.Status == models.CredentialStatusNeedsReauth {
		return "", AuthFailure(fmt.Sprintf("TikTok credential for user %d needs re-authorization", userID), nil)
	}

	if time.Until(credential.ExpiresAt()) <= s.cfg.TokenRefreshMargin {
		if err := s.Refresh(ctx, credential); err != nil {
			return "", err
		}
		credential, err = s.cr.GetByUserID(ctx, userID)
		if err != nil {
			return "", err
		}
		if credential == nil {
			return "", AuthFailure(fmt.Sprintf("no TikTok credential for user %d", userID), nil)
		}
	}

	return utils.Decrypt(credential.AccessToken, []byte(s.cfg.SecretKey))
}

// Refresh rotates the token pair. Safe to call ahead of expiry; the
// provider issues a fresh pair on every exchange. A rejected refresh
// token flags the credential for re-linking.
func (s *tiktokService) Refresh(ctx context.Context, credential *models.TikTokCredential) error {
	decryptedRefreshToken, err := utils.Decrypt(credential.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	tokenResponse, err := s.exchangeToken(ctx, url.Values{
		"client_key":    {s.cfg.TiktokClientKey},
		"client_secret": {s.cfg.TiktokClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {decryptedRefreshToken},
	})
	if err != nil {
		if KindOf(err) == ErrKindAuth {
			if flagErr := s.cr.SetStatus(ctx, credential.UserID, models.CredentialStatusNeedsReauth); flagErr != nil {
				slog.Info(flagErr.Error())
			}
		}
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	rotated := &models.TikTokCredential{
		AccessToken:  encryptedAccessToken,
		RefreshToken: encryptedRefreshToken,
		ExpiresIn:    tokenResponse.ExpiresIn,
	}

	return s.cr.SetTokens(ctx, credential.UserID, credential.AccessToken, rotated)
}

// Revoke tells the provider to drop the grant, then deletes the stored
// credential. The delete happens even if the revoke call fails; the
// user asked to disconnect.
func (s *tiktokService) Revoke(ctx context.Context, userID int64) error {
	credential, err := s.cr.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if credential == nil {
		return nil
	}

	accessToken, err := utils.Decrypt(credential.AccessToken, []byte(s.cfg.SecretKey))
	if err == nil {
		if err := s.revokeRemote(ctx, accessToken); err != nil {
			log.Printf("TikTok revoke call failed for user %d: %v", userID, err)
		}
	}

	return s.cr.Remove(ctx, userID)
}

func (s *tiktokService) revokeRemote(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Add("client_key", s.cfg.TiktokClientKey)
	form.Add("client_secret", s.cfg.TiktokClientSecret)
	form.Add("token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v2/oauth/revoke/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return FromHTTPStatus(resp.StatusCode, string(body))
	}
	return nil
}

func (s *tiktokService) GetCredential(ctx context.Context, userID int64) (*models.TikTokCredential, error) {
	return s.cr.GetByUserID(ctx, userID)
}

func (s *tiktokService) ListVideos(ctx context.Context, userID int64, cursor int64, maxCount int) (*transfer.VideoListData, error) {
	accessToken, err := s.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(transfer.VideoListRequest{MaxCount: maxCount, Cursor: cursor})
	if err != nil {
		return nil, err
	}

	requestURL := s.baseURL + "/v2/video/list/?fields=id,title,video_description,duration,cover_image_url,embed_link"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, Transient("video list request failed", err)
	}
	defer resp.Body.Close()

	var result transfer.VideoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if !result.Error.OK() {
		return nil, &RelayError{Kind: ErrKindPermanent, Message: fmt.Sprintf("video list rejected: %s", result.Error.Message)}
	}

	return &result.Data, nil
}

// PublishVideo runs the three-step submission protocol: init with the
// post metadata, upload the raw bytes to the returned URL, then poll
// the publish status until terminal. Returns the provider's post id.
// An authorization rejection flags the credential so no further publish
// is attempted with the same token.
func (s *tiktokService) PublishVideo(ctx context.Context, userID int64, accessToken, filePath, caption string) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", Permanent("video file missing", err)
	}
	videoSize := info.Size()
	if videoSize == 0 {
		return "", Permanent("video file is empty", nil)
	}

	initData, err := s.publishInit(ctx, accessToken, caption, videoSize)
	if err != nil {
		s.flagOnAuthError(ctx, userID, err)
		return "", err
	}

	if err := s.uploadVideo(ctx, initData.UploadURL, filePath, videoSize); err != nil {
		return "", err
	}

	postID, err := s.pollPublishStatus(ctx, accessToken, initData.PublishID)
	if err != nil {
		s.flagOnAuthError(ctx, userID, err)
		return "", err
	}

	log.Printf("TikTok publish complete: publish_id=%s post_id=%s", initData.PublishID, postID)
	return postID, nil
}

func (s *tiktokService) flagOnAuthError(ctx context.Context, userID int64, err error) {
	if KindOf(err) != ErrKindAuth {
		return
	}
	if flagErr := s.cr.SetStatus(ctx, userID, models.CredentialStatusNeedsReauth); flagErr != nil {
		slog.Info(flagErr.Error())
	}
}

func (s *tiktokService) publishInit(ctx context.Context, accessToken, caption string, videoSize int64) (*transfer.PublishInitData, error) {
	request := transfer.PublishInitRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 caption,
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			DisableDuet:           false,
			DisableComment:        false,
			DisableStitch:         false,
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       videoSize,
			ChunkSize:       videoSize,
			TotalChunkCount: 1,
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v2/post/publish/video/init/", bytes.NewBuffer(jsonData))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, Transient("publish init request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, FromHTTPStatus(resp.StatusCode, fmt.Sprintf("publish init rejected: %s", string(body)))
	}

	var result transfer.PublishInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, Transient("failed to decode publish init response", err)
	}
	if !result.Error.OK() {
		return nil, Permanent(fmt.Sprintf("publish init rejected: %s", result.Error.Message), nil)
	}
	if result.Data.UploadURL == "" || result.Data.PublishID == "" {
		return nil, Permanent("publish init returned no upload target", nil)
	}

	return &result.Data, nil
}

func (s *tiktokService) uploadVideo(ctx context.Context, uploadURL, filePath string, videoSize int64) error {
	file, err := os.Open(filePath)
	if err != nil {
		return Permanent("video file missing", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	req.ContentLength = videoSize
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", videoSize-1, videoSize))

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Transient("video upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return FromHTTPStatus(resp.StatusCode, fmt.Sprintf("video upload rejected: %s", string(body)))
	}
	return nil
}

// pollPublishStatus waits for a terminal publish state, bounded by
// publishPollAttempts with exponential backoff.
func (s *tiktokService) pollPublishStatus(ctx context.Context, accessToken, publishID string) (string, error) {
	delay := s.pollDelay

	for attempt := 1; attempt <= publishPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		status, err := s.fetchPublishStatus(ctx, accessToken, publishID)
		if err != nil {
			if KindOf(err) == ErrKindAuth {
				return "", err
			}
			slog.Info(err.Error())
		} else {
			switch status.Status {
			case transfer.PublishStatusComplete:
				if len(status.PubliclyAvailablePostID) > 0 {
					return fmt.Sprintf("%d", status.PubliclyAvailablePostID[0]), nil
				}
				return publishID, nil
			case transfer.PublishStatusFailed:
				return "", Permanent(fmt.Sprintf("publish failed: %s", status.FailReason), nil)
			}
		}

		delay *= 2
		if delay > publishPollMaxDelay {
			delay = publishPollMaxDelay
		}
	}

	return "", Transient(fmt.Sprintf("publish status not terminal after %d attempts", publishPollAttempts), nil)
}

func (s *tiktokService) fetchPublishStatus(ctx context.Context, accessToken, publishID string) (*transfer.PublishStatusData, error) {
	jsonData, err := json.Marshal(transfer.PublishStatusRequest{PublishID: publishID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v2/post/publish/status/fetch/", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient("publish status request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, FromHTTPStatus(resp.StatusCode, string(body))
	}

	var result transfer.PublishStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Transient("failed to decode publish status response", err)
	}
	if !result.Error.OK() {
		return nil, Permanent(fmt.Sprintf("publish status rejected: %s", result.Error.Message), nil)
	}

	return &result.Data, nil
}
