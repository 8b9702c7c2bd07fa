package transfer

import "time"

type InstagramProfile struct {
	Username          string `json:"username"`
	DisplayName       string `json:"display_name"`
	Biography         string `json:"biography"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	PostsCount        int64  `json:"posts_count"`
	IsPrivate         bool   `json:"is_private"`
	IsVerified        bool   `json:"is_verified"`
}

type InstagramReel struct {
	Code          string    `json:"code"`
	URL           string    `json:"url"`
	Caption       string    `json:"caption"`
	VideoURL      string    `json:"video_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	TakenAt       time.Time `json:"taken_at"`
	Duration      float64   `json:"duration"`
}

// Raw shapes of the Instagram web profile payload; only the fields the
// reader needs.
type IgWebProfileResponse struct {
	Data struct {
		User IgWebUser `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

type IgWebUser struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	ProfilePicURL string `json:"profile_pic_url_hd"`
	IsPrivate     bool   `json:"is_private"`
	IsVerified    bool   `json:"is_verified"`
	FollowedBy    struct {
		Count int64 `json:"count"`
	} `json:"edge_followed_by"`
	TimelineMedia IgMediaConnection `json:"edge_owner_to_timeline_media"`
}

type IgMediaConnection struct {
	Count int64 `json:"count"`
	Edges []struct {
		Node IgMediaNode `json:"node"`
	} `json:"edges"`
}

type IgMediaNode struct {
	Shortcode     string  `json:"shortcode"`
	IsVideo       bool    `json:"is_video"`
	VideoURL      string  `json:"video_url"`
	DisplayURL    string  `json:"display_url"`
	VideoDuration float64 `json:"video_duration"`
	TakenAt       int64   `json:"taken_at_timestamp"`
	Caption       struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	LikedBy struct {
		Count int64 `json:"count"`
	} `json:"edge_liked_by"`
	Comments struct {
		Count int64 `json:"count"`
	} `json:"edge_media_to_comment"`
}
