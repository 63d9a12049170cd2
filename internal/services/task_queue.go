package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/pkg/logger"
)

const (
	TaskTypeRecalculate = "score:recalculate"
)

// RecalculateTask asks for an indicator-year to be regraded. A zero
// IndicatorID regrades every active indicator for the year.
type RecalculateTask struct {
	IndicatorID uint `json:"indicator_id"`
	Year        int  `json:"year"`
}

// TaskQueue defines the interface for score recalculation processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *RecalculateTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when enabled and reachable,
// otherwise the in-process one.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
			return NewSyncQueue()
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func newRecalculateTask(task *RecalculateTask) (*asynq.Task, error) {
	if task.Year == 0 {
		return nil, invalidf("recalculation task needs a year")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecalculate, payload), nil
}

// Enqueue adds a recalculation task. Duplicate requests for the same
// indicator-year inside a short window collapse into one.
func (q *AsyncQueue) Enqueue(task *RecalculateTask) error {
	t, err := newRecalculateTask(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.TaskID(fmt.Sprintf("recalc:%d:%d", task.IndicatorID, task.Year)),
		asynq.Retention(0),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("[AsyncQueue] Task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process (no Redis).
type SyncQueue struct {
	mu        sync.RWMutex
	processor func(context.Context, *RecalculateTask) error
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor func(context.Context, *RecalculateTask) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

// Enqueue processes the task in a goroutine so the caller's response is
// not held up by the recalculation.
func (q *SyncQueue) Enqueue(task *RecalculateTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Uint("indicator_id", task.IndicatorID).Int("year", task.Year).
				Msg("[SyncQueue] Task processing failed")
		}
	}()

	return nil
}

// Wait blocks until every task enqueued so far has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
