package models

import (
	"database/sql"
	"time"
)

type MonitoredProfile struct {
	ID                   int64        `db:"id" json:"id"`
	UserID               int64        `db:"user_id" json:"user_id"`
	Username             string       `db:"instagram_username" json:"username"`
	DisplayName          string       `db:"display_name" json:"display_name"`
	ProfilePictureURL    string       `db:"profile_picture_url" json:"profile_picture_url"`
	IsActive             bool         `db:"is_active" json:"is_active"`
	CheckIntervalMinutes int          `db:"check_interval_minutes" json:"check_interval_minutes"`
	LastCheckedAt        sql.NullTime `db:"last_checked_at" json:"last_checked_at"`
	LastPostedAt         sql.NullTime `db:"last_posted_at" json:"last_posted_at"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

func (p *MonitoredProfile) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalMinutes) * time.Minute
}

// Due reports whether the profile is eligible for a discovery sweep at now.
func (p *MonitoredProfile) Due(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if !p.LastCheckedAt.Valid {
		return true
	}
	return now.Sub(p.LastCheckedAt.Time) >= p.CheckInterval()
}
