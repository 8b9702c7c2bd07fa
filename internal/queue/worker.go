package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/autoreel/internal/jobs"
)

// Mux registers every task handler on an asynq mux.
func (q *Queue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeDiscoverySweep, q.HandleDiscoverySweep)
	mux.HandleFunc(TaskTypeRelaySweep, q.HandleRelaySweep)
	mux.HandleFunc(TaskTypeTokenRefresh, q.HandleTokenRefresh)
	mux.HandleFunc(TaskTypeProxyStats, q.HandleProxyStats)
	mux.HandleFunc(TaskTypeCleanup, q.HandleCleanup)
	mux.HandleFunc(TaskTypeRelayReel, q.HandleRelayReel)
	return mux
}

func (q *Queue) HandleDiscoverySweep(ctx context.Context, task *asynq.Task) error {
	return q.runSweep(ctx, "discovery", q.dj.Run)
}

func (q *Queue) HandleRelaySweep(ctx context.Context, task *asynq.Task) error {
	return q.runSweep(ctx, "relay", q.rj.Run)
}

func (q *Queue) HandleTokenRefresh(ctx context.Context, task *asynq.Task) error {
	return q.runSweep(ctx, "token_refresh", q.tj.Run)
}

func (q *Queue) HandleProxyStats(ctx context.Context, task *asynq.Task) error {
	return q.runSweep(ctx, "proxy_stats", q.mj.RunProxyStats)
}

func (q *Queue) HandleCleanup(ctx context.Context, task *asynq.Task) error {
	return q.runSweep(ctx, "cleanup", q.mj.RunCleanup)
}

func (q *Queue) HandleRelayReel(ctx context.Context, task *asynq.Task) error {
	var payload RelayReelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.runSweep(ctx, "relay_reel", func(ctx context.Context) error {
		return q.rj.Process(ctx, payload.ReelID)
	})
}

// runSweep is the work-unit wrapper: it attaches the soft deadline,
// recovers panics so a crashing sweep never takes the worker down, and
// logs the outcome. The hard limit arrives through ctx from the asynq
// task timeout set at enqueue.
func (q *Queue) runSweep(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	start := time.Now()
	ctx = jobs.WithSoftDeadline(ctx, q.cfg.SoftTimeLimit)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Sweep %s panicked: %v", name, r)
			err = fmt.Errorf("sweep %s panicked: %v", name, r)
		}
	}()

	if err := fn(ctx); err != nil {
		log.Printf("Sweep %s failed after %s: %v", name, time.Since(start), err)
		return err
	}

	log.Printf("Sweep %s completed in %s", name, time.Since(start))
	return nil
}
