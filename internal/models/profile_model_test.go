package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileDue(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		profile MonitoredProfile
		want    bool
	}{
		{
			name:    "inactive profile never due",
			profile: MonitoredProfile{IsActive: false, CheckIntervalMinutes: 60},
			want:    false,
		},
		{
			name:    "never checked is due immediately",
			profile: MonitoredProfile{IsActive: true, CheckIntervalMinutes: 60},
			want:    true,
		},
		{
			name: "checked recently is not due",
			profile: MonitoredProfile{
				IsActive:             true,
				CheckIntervalMinutes: 60,
				LastCheckedAt:        sql.NullTime{Time: now.Add(-10 * time.Minute), Valid: true},
			},
			want: false,
		},
		{
			name: "interval elapsed exactly is due",
			profile: MonitoredProfile{
				IsActive:             true,
				CheckIntervalMinutes: 60,
				LastCheckedAt:        sql.NullTime{Time: now.Add(-60 * time.Minute), Valid: true},
			},
			want: true,
		},
		{
			name: "interval long elapsed is due",
			profile: MonitoredProfile{
				IsActive:             true,
				CheckIntervalMinutes: 30,
				LastCheckedAt:        sql.NullTime{Time: now.Add(-2 * time.Hour), Valid: true},
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.profile.Due(now))
		})
	}
}

func TestCredentialExpiresAt(t *testing.T) {
	updated := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	c := TikTokCredential{ExpiresIn: 86400, UpdatedAt: updated}
	assert.Equal(t, updated.Add(24*time.Hour), c.ExpiresAt())
}
