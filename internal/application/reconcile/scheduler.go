package reconcile

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task is a unit of scheduled work.
type Task interface {
	Run() error
	Name() string
}

// Scheduler runs tasks on cron schedules (six fields, seconds first).
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for running tasks to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// Add registers task under schedule, e.g. "0 */15 * * * *" or "@every 5m".
func (s *Scheduler) Add(schedule string, task Task) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", task.Name()).Msg("running job")
		if err := task.Run(); err != nil {
			s.log.Error().Err(err).Str("job", task.Name()).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", task.Name()).Msg("job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", task.Name()).Msg("job registered")
	return nil
}

// Entries reports how many schedules are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
