package queue

import (
	"fmt"
	"time"

	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/jobs"
)

type Queue struct {
	cfg config.Config
	dj  *jobs.DiscoveryJob
	rj  *jobs.RelayJob
	tj  *jobs.TokenRefreshJob
	mj  *jobs.MaintenanceJob
}

func NewQueue(
	cfg config.Config,
	dj *jobs.DiscoveryJob,
	rj *jobs.RelayJob,
	tj *jobs.TokenRefreshJob,
	mj *jobs.MaintenanceJob) *Queue {
	return &Queue{
		cfg: cfg,
		dj:  dj,
		rj:  rj,
		tj:  tj,
		mj:  mj,
	}
}

const (
	TaskTypeDiscoverySweep = "sweep:discovery"
	TaskTypeRelaySweep     = "sweep:relay"
	TaskTypeTokenRefresh   = "sweep:token_refresh"
	TaskTypeProxyStats     = "sweep:proxy_stats"
	TaskTypeCleanup        = "sweep:cleanup"
	TaskTypeRelayReel      = "relay:reel"
)

type RelayReelPayload struct {
	ReelID int64 `json:"reel_id"`
}

// ScheduleEntry is one periodic trigger: a name, a cron cadence and the
// task type it enqueues. Triggers are independent; a slow or failing
// work unit never delays the next firing.
type ScheduleEntry struct {
	Name     string
	Cadence  string
	TaskType string
}

// ScheduleTable is the full periodic schedule, driven by config.
func ScheduleTable(cfg config.Config) []ScheduleEntry {
	return []ScheduleEntry{
		{Name: "monitor-profiles", Cadence: every(cfg.DiscoveryInterval), TaskType: TaskTypeDiscoverySweep},
		{Name: "relay-pending-reels", Cadence: every(cfg.RelayInterval), TaskType: TaskTypeRelaySweep},
		{Name: "refresh-tiktok-tokens", Cadence: every(cfg.TokenRefreshInterval), TaskType: TaskTypeTokenRefresh},
		{Name: "update-proxy-stats", Cadence: every(cfg.ProxyStatsInterval), TaskType: TaskTypeProxyStats},
		{Name: "cleanup-old-media", Cadence: every(cfg.CleanupInterval), TaskType: TaskTypeCleanup},
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
