package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	lockRecalculate = "score_recalculate"
	lockLogCleanup  = "log_cleanup"
	lockTTL         = time.Hour
)

// Scheduler runs the nightly score recalculation and audit log cleanup.
// Each run is claimed through a scheduler_locks row so that only one
// instance does the work.
type Scheduler struct {
	db     *gorm.DB
	scores *ScoreService
	logs   *SystemLogService
	cfg    config.ScoringConfig
	owner  string
	cron   *cron.Cron
	now    func() time.Time
}

func NewScheduler(db *gorm.DB, scores *ScoreService, logs *SystemLogService, cfg config.ScoringConfig) *Scheduler {
	return &Scheduler{
		db:     db,
		scores: scores,
		logs:   logs,
		cfg:    cfg,
		owner:  uuid.NewString(),
		now:    time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.RecalculateCron, func() { s.RunRecalculation(context.Background()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.CleanupCron, func() { s.RunCleanup() }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info().
		Str("recalculate", s.cfg.RecalculateCron).
		Str("cleanup", s.cfg.CleanupCron).
		Msg("[Scheduler] started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunRecalculation regrades the current year once per day.
func (s *Scheduler) RunRecalculation(ctx context.Context) {
	now := s.now()
	ok, err := s.acquire(lockRecalculate, now.Format(dateLayout), now)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] failed to acquire recalculation lock")
		return
	}
	if !ok {
		logger.Debug().Msg("[Scheduler] recalculation already claimed by another instance")
		return
	}
	if !NewSystemConfigService(s.db).GetBool("score_recalculate_enabled", true) {
		return
	}
	if _, err := s.scores.RecalculateYear(ctx, SystemPrincipal, now.Year()); err != nil {
		logger.Error().Err(err).Msg("[Scheduler] yearly recalculation failed")
	}
}

// RunCleanup deletes audit records past the configured retention.
func (s *Scheduler) RunCleanup() {
	now := s.now()
	ok, err := s.acquire(lockLogCleanup, now.Format(dateLayout), now)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] failed to acquire cleanup lock")
		return
	}
	if !ok {
		return
	}
	days := s.logs.GetRetentionDays()
	deleted, err := s.logs.CleanupOldLogs(days)
	if err != nil {
		logger.Error().Err(err).Msg("[Scheduler] log cleanup failed")
		return
	}
	logger.Info().Int64("deleted", deleted).Int("retention_days", days).Msg("[Scheduler] log cleanup finished")
}

// acquire claims (name, key) for lockTTL. An expired claim held by another
// instance may be taken over.
func (s *Scheduler) acquire(name, key string, now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.owner,
		LockedAt:  now,
		ExpiresAt: now.Add(lockTTL),
	}
	err := s.db.Create(&lock).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	res := s.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Updates(map[string]interface{}{
			"locked_by":  s.owner,
			"locked_at":  now,
			"expires_at": now.Add(lockTTL),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
