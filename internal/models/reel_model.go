package models

import (
	"database/sql"
	"time"
)

type Reel struct {
	ID            int64        `db:"id" json:"id"`
	ProfileID     int64        `db:"profile_id" json:"profile_id"`
	ReelCode      string       `db:"instagram_reel_code" json:"reel_code"`
	ReelURL       string       `db:"instagram_reel_url" json:"reel_url"`
	VideoURL      string       `db:"video_url" json:"video_url"`
	Caption       string       `db:"caption" json:"caption"`
	Status        string       `db:"status" json:"status"` // pending, posted, failed
	ErrorMessage  string       `db:"error_message" json:"error_message"`
	VideoFilePath string       `db:"video_file_path" json:"video_file_path"`
	TiktokPostID  string       `db:"tiktok_post_id" json:"tiktok_post_id"`
	TiktokPostURL string       `db:"tiktok_post_url" json:"tiktok_post_url"`
	PostedAt      sql.NullTime `db:"posted_at" json:"posted_at"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

const (
	ReelStatusPending = "pending"
	ReelStatusPosted  = "posted"
	ReelStatusFailed  = "failed"
)
