package transfer

type TiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type TiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// OK reports whether the TikTok response envelope signals success.
func (e *TiktokError) OK() bool {
	return e.Code == "" || e.Code == "ok"
}

type TikTokUserResponse struct {
	Data  TiktokUserData `json:"data"`
	Error TiktokError    `json:"error"`
}

type TiktokUserData struct {
	User TiktokUser `json:"user"`
}

type TiktokUser struct {
	OpenID      string `json:"open_id"`
	AvatarURL   string `json:"avatar_url"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

type VideoPostInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms"`
}

type VideoSourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type PublishInitRequest struct {
	PostInfo   VideoPostInfo   `json:"post_info"`
	SourceInfo VideoSourceInfo `json:"source_info"`
}

type PublishInitResponse struct {
	Data  PublishInitData `json:"data"`
	Error TiktokError     `json:"error"`
}

type PublishInitData struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

type PublishStatusRequest struct {
	PublishID string `json:"publish_id"`
}

type PublishStatusResponse struct {
	Data  PublishStatusData `json:"data"`
	Error TiktokError       `json:"error"`
}

type PublishStatusData struct {
	Status                  string  `json:"status"`
	FailReason              string  `json:"fail_reason"`
	PubliclyAvailablePostID []int64 `json:"publicaly_available_post_id"`
	UploadedBytes           int64   `json:"uploaded_bytes"`
}

// Publish status values reported by the status fetch endpoint.
const (
	PublishStatusProcessing = "PROCESSING_UPLOAD"
	PublishStatusComplete   = "PUBLISH_COMPLETE"
	PublishStatusFailed     = "FAILED"
)

type VideoListRequest struct {
	MaxCount int   `json:"max_count"`
	Cursor   int64 `json:"cursor,omitempty"`
}

type VideoListResponse struct {
	Data  VideoListData `json:"data"`
	Error TiktokError   `json:"error"`
}

type VideoListData struct {
	Videos  []TiktokVideo `json:"videos"`
	Cursor  int64         `json:"cursor"`
	HasMore bool          `json:"has_more"`
}

type TiktokVideo struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	VideoDescription string `json:"video_description"`
	Duration         int    `json:"duration"`
	CoverImageURL    string `json:"cover_image_url"`
	EmbedLink        string `json:"embed_link"`
}

type TiktokRevokeData struct {
	ErrorCode   int64  `json:"error_code"`
	Description string `json:"description"`
}
