package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer wraps the asynq client so the scheduler loop and the
// discovery job can push work units without knowing about redis.
type Enqueuer struct {
	client    *asynq.Client
	hardLimit time.Duration
}

func NewEnqueuer(client *asynq.Client, hardLimit time.Duration) *Enqueuer {
	return &Enqueuer{client: client, hardLimit: hardLimit}
}

// EnqueueSweep pushes one work unit for a periodic trigger. The hard
// time limit rides along as the asynq task timeout; a work unit that
// exceeds it is cancelled and recorded as failed without disturbing
// the schedule.
func (e *Enqueuer) EnqueueSweep(taskType string) error {
	task := asynq.NewTask(taskType, nil)

	_, err := e.client.Enqueue(task, asynq.Timeout(e.hardLimit), asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	log.Printf("Work unit enqueued: %s", taskType)
	return nil
}

// DispatchReel enqueues a single-reel relay task.
func (e *Enqueuer) DispatchReel(reelID int64) error {
	payload, err := json.Marshal(RelayReelPayload{ReelID: reelID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeRelayReel, payload)

	_, err = e.client.Enqueue(task, asynq.Timeout(e.hardLimit), asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	log.Printf("Relay task enqueued for reel %d", reelID)
	return nil
}
