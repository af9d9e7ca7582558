package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/movements"
	"github.com/mamadbah2/orchard/internal/service/reporting"
)

const sweepTimeout = 2 * time.Minute

// Applications lists applications and recomputes their consumption.
type Applications interface {
	List(ctx context.Context, estado models.Estado) ([]models.Application, error)
	Progress(ctx context.Context, id, lotID string) (movements.Progress, error)
}

// Notifier delivers outbound WhatsApp messages.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler runs the consumption alert sweep on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	apps     Applications
	notifier Notifier
	manager  string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler in the configured timezone.
func NewScheduler(cfg config.Config, apps Applications, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Alerts.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: cfg.Alerts.CronSchedule,
		apps:     apps,
		notifier: notifier,
		manager:  cfg.WhatsApp.ManagerID,
		logger:   logger,
	}, nil
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := s.SweepAlerts(ctx); err != nil {
			s.logger.Error("alert sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule alert sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// SweepAlerts recomputes consumption of every application in execution and sends the
// warning and error alerts to the manager, one message per application.
func (s *Scheduler) SweepAlerts(ctx context.Context) error {
	if s.manager == "" {
		s.logger.Debug("no manager recipient configured, skipping alert sweep")
		return nil
	}

	apps, err := s.apps.List(ctx, models.EstadoEnEjecucion)
	if err != nil {
		return fmt.Errorf("list applications in execution: %w", err)
	}

	sent := 0
	for _, app := range apps {
		progress, err := s.apps.Progress(ctx, app.ID, "")
		if err != nil {
			s.logger.Error("failed to compute progress", zap.String("application_id", app.ID), zap.Error(err))
			continue
		}

		alerts := movements.Filter(progress.Alerts, movements.AlertWarning)
		if len(alerts) == 0 {
			continue
		}

		message := fmt.Sprintf("Alertas de consumo: %s\n%s", app.Name, strings.TrimRight(reporting.FormatAlerts(alerts), "\n"))
		if err := s.notifier.SendOutbound(ctx, models.OutboundMessageRequest{To: s.manager, Message: message}); err != nil {
			s.logger.Error("failed to send alerts", zap.String("application_id", app.ID), zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Info("alert sweep finished", zap.Int("applications", len(apps)), zap.Int("notified", sent))
	return nil
}
