package models

import (
	"database/sql"
	"time"
)

type ProxyEndpoint struct {
	ID           int64        `db:"id" json:"id"`
	ProxyURL     string       `db:"proxy_url" json:"proxy_url"`
	ProxyType    string       `db:"proxy_type" json:"proxy_type"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	SuccessCount int64        `db:"success_count" json:"success_count"`
	FailureCount int64        `db:"failure_count" json:"failure_count"`
	LastUsedAt   sql.NullTime `db:"last_used_at" json:"last_used_at"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Deactivation thresholds for unhealthy endpoints. An endpoint is only
// deactivated once it has enough attempts to judge it.
const (
	ProxyMinAttempts     = 10
	ProxyMaxFailureRatio = 0.7
	ProxyTypeHTTP        = "http"
	ProxyTypeSOCKS5      = "socks5"
)
