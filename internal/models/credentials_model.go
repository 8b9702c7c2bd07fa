package models

import "time"

// TikTokCredential holds one OAuth grant per user. Token material is
// stored AES-GCM encrypted.
type TikTokCredential struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresIn    int       `db:"expires_in" json:"expires_in"`
	OpenID       string    `db:"open_id" json:"open_id"`
	Scope        string    `db:"scope" json:"scope"`
	Status       string    `db:"status" json:"status"` // active, needs_reauth
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	CredentialStatusActive      = "active"
	CredentialStatusNeedsReauth = "needs_reauth"
)

// ExpiresAt is the effective expiry of the access token.
func (c *TikTokCredential) ExpiresAt() time.Time {
	return c.UpdatedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}
