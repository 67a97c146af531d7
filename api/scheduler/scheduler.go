package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/artist-platform-api/api"
	"github.com/linesmerrill/artist-platform-api/databases"
)

const (
	sweepLockName = "invitation_expiry_sweep"
	sweepLockTTL  = 10 * time.Minute
	sweepTimeout  = 5 * time.Minute
)

// Sweeper expires stale invitations. It is implemented by roster.Workflow.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Scheduler handles periodic background jobs for the roster
type Scheduler struct {
	cron       *cron.Cron
	Sweeper    Sweeper
	LockDB     databases.SchedulerLockDatabase
	Schedule   string
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(sweeper Sweeper, lockDB databases.SchedulerLockDatabase, schedule string) *Scheduler {
	// Heroku sets this to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = "instance-" + uuid.New().String()
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Sweeper:    sweeper,
		LockDB:     lockDB,
		Schedule:   schedule,
		instanceID: instanceID,
	}
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.Schedule, s.expireStaleInvitations); err != nil {
		zap.S().Errorw("failed to register invitation expiry job", "schedule", s.Schedule, "error", err)
		return err
	}

	s.cron.Start()
	zap.S().Infow("roster scheduler started", "schedule", s.Schedule, "instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("roster scheduler stopped")
}

// expireStaleInvitations marks aged out pending invitations as expired. Only the instance
// holding the lock runs a given sweep.
func (s *Scheduler) expireStaleInvitations() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, sweepLockName, s.instanceID, sweepLockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for invitation expiry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("invitation expiry job already running on another instance, skipping")
		return
	}
	defer func() {
		// the sweep context may already be spent, release under its own deadline
		releaseCtx, cancel := api.WithQueryTimeout(context.Background())
		defer cancel()
		if err := s.LockDB.ReleaseLock(releaseCtx, sweepLockName, s.instanceID); err != nil {
			zap.S().Warnw("failed to release invitation expiry lock", "error", err)
		}
	}()

	start := time.Now()
	count, err := s.Sweeper.ExpireStale(ctx)
	if err != nil {
		zap.S().Errorw("invitation expiry job failed", "instance", s.instanceID, "error", err)
		return
	}
	zap.S().Infow("invitation expiry job finished",
		"instance", s.instanceID,
		"expired", count,
		"duration", time.Since(start),
	)
}
