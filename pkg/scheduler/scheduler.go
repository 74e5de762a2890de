package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
)

// Scheduler runs the periodic alerting jobs on cron specs
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	store    db.Store
	notifier services.Notifier
	clock    services.Clock
	logger   *zap.Logger
	jobs     []string
	ctx      context.Context
}

// New registers every job whose spec is not config.ScheduleOff
func New(cfg *config.Config, store db.Store, notifier services.Notifier, clock services.Clock, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Named("cron").Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		ctx:      context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"checkAll", cfg.Schedule.CheckAll, s.CheckAll},
		{"reminders", cfg.Schedule.Reminders, s.Reminders},
		{"recurringNeeds", cfg.Schedule.RecurringNeeds, s.RecurringNeeds},
	}
	for _, job := range jobs {
		if job.spec == "" || job.spec == config.ScheduleOff {
			logger.Info("Scheduled job disabled", zap.String("job", job.name))
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.jobs = append(s.jobs, job.name)
		logger.Info("Scheduled job", zap.String("job", job.name), zap.String("spec", job.spec))
	}

	return s, nil
}

// Jobs returns the names of the registered jobs
func (s *Scheduler) Jobs() []string {
	return s.jobs
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for running jobs
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// CheckAll closes out past events and alerts on the rest
func (s *Scheduler) CheckAll(ctx context.Context) error {
	settings := services.AlertSettings{Cooldown: s.cfg.Alerts.Cooldown, Location: s.cfg.Location()}
	result, err := services.CheckAllEvents(ctx, s.store, s.notifier, s.clock, settings, s.logger)
	if err != nil {
		return err
	}
	alerted := 0
	for _, check := range result.Checks {
		alerted += len(check.Alerted)
	}
	s.logger.Info("Check all complete",
		zap.Int("events", len(result.Checks)),
		zap.Int("alerted", alerted),
		zap.Int("marked_complete", len(result.MarkedComplete)))
	return nil
}

// Reminders reminds committed volunteers of events starting soon
func (s *Scheduler) Reminders(ctx context.Context) error {
	sent, failed, err := services.SendCommitmentReminders(ctx, s.store, s.notifier, s.clock, s.cfg.Location(), s.cfg.Alerts.ReminderLead, s.logger)
	if err != nil {
		return err
	}
	if len(sent) > 0 || len(failed) > 0 {
		s.logger.Info("Reminders sent", zap.Int("sent", len(sent)), zap.Int("failed", len(failed)))
	}
	return nil
}

// RecurringNeeds creates events for configured recurring needs
func (s *Scheduler) RecurringNeeds(ctx context.Context) error {
	_, err := services.ScheduleRecurringNeeds(ctx, s.store, s.clock, s.cfg, s.logger)
	return err
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		s.logger.Debug("Running scheduled job", zap.String("job", name))
		if err := run(s.ctx); err != nil {
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
