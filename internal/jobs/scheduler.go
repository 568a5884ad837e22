package jobs

import (
	"context" // Context propagation
	"time"    // Time and durations

	"github.com/robfig/cron/v3"  // Cron scheduler
	"github.com/sirupsen/logrus" // Logging library
)

const jobTimeout = 5 * time.Minute

// Scheduler runs the jobs on cron specs
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
}

// NewScheduler builds a scheduler. A job that panics is logged and recovered, and a run is
// skipped while the previous run of the same job is still going.
func NewScheduler(jobs *Jobs) *Scheduler {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, jobs: jobs}
}

// Register adds both jobs. An invalid spec is returned as an error.
func (s *Scheduler) Register(unlockSpec, purgeSpec string) error {
	for _, job := range []struct {
		name string
		spec string
		run  func(context.Context) (int64, error)
	}{
		{"unlock_wallets", unlockSpec, s.jobs.UnlockExpiredWallets},
		{"purge_notifications", purgeSpec, s.jobs.PurgeNotifications},
	} {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := job.run(ctx); err != nil {
				logrus.WithField("job", job.name).WithError(err).Error("Scheduled job failed")
			}
		}); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"job": job.name, "schedule": job.spec}).Info("Scheduled job")
	}
	return nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
