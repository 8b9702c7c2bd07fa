package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	TiktokClientKey    string
	TiktokClientSecret string
	TiktokRedirectURI  string
	PostgresURI        string
	RedisURI           string
	FrontendURL        string
	R2                 R2
	SecretKey          string
	CookieName         string

	ProxyListURL string

	DiscoveryInterval    time.Duration
	RelayInterval        time.Duration
	TokenRefreshInterval time.Duration
	ProxyStatsInterval   time.Duration
	CleanupInterval      time.Duration

	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration

	ScrapeDelayMin       time.Duration
	ScrapeDelayMax       time.Duration
	RateLimitBackoff     time.Duration
	MaxConcurrentScrapes int
	ReelFetchLimit       int

	MediaDir       string
	MaxFileSize    int64
	MediaRetention time.Duration

	TokenRefreshMargin time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TiktokClientKey:    getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
		TiktokRedirectURI:  getEnv("TIKTOK_REDIRECT_URI", ""),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),

		ProxyListURL: getEnv("PROXY_LIST_URL", ""),

		DiscoveryInterval:    getEnvDuration("DISCOVERY_INTERVAL", 5*time.Minute),
		RelayInterval:        getEnvDuration("RELAY_INTERVAL", 10*time.Minute),
		TokenRefreshInterval: getEnvDuration("TOKEN_REFRESH_INTERVAL", 30*time.Minute),
		ProxyStatsInterval:   getEnvDuration("PROXY_STATS_INTERVAL", time.Hour),
		CleanupInterval:      getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),

		SoftTimeLimit: getEnvDuration("TASK_SOFT_TIME_LIMIT", 4*time.Minute),
		HardTimeLimit: getEnvDuration("TASK_HARD_TIME_LIMIT", 5*time.Minute),

		ScrapeDelayMin:       getEnvDuration("SCRAPE_DELAY_MIN", 2*time.Second),
		ScrapeDelayMax:       getEnvDuration("SCRAPE_DELAY_MAX", 8*time.Second),
		RateLimitBackoff:     getEnvDuration("RATE_LIMIT_BACKOFF", 30*time.Second),
		MaxConcurrentScrapes: getEnvInt("MAX_CONCURRENT_SCRAPES", 5),
		ReelFetchLimit:       getEnvInt("REEL_FETCH_LIMIT", 20),

		MediaDir:       getEnv("MEDIA_DIR", "media"),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 100*1024*1024),
		MediaRetention: getEnvDuration("MEDIA_RETENTION", 7*24*time.Hour),

		TokenRefreshMargin: getEnvDuration("TOKEN_REFRESH_MARGIN", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
