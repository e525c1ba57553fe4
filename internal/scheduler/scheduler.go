// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 30 * time.Second

// Reloader refreshes an in-memory view from the store.
type Reloader interface {
	Reload(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// ScheduleReload runs r.Reload on spec (e.g. "@every 5m"). Overlapping
// runs are skipped.
func (s *Scheduler) ScheduleReload(name, spec string, r Reloader) error {
	job := cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := r.Reload(ctx); err != nil {
			logrus.WithError(err).WithField("job", name).Error("Scheduled reload failed.")
		}
	})
	_, err := s.cron.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job))
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
