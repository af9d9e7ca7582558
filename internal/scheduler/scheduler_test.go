package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/movements"
)

type fakeApps struct {
	apps     []models.Application
	progress map[string]movements.Progress
	listed   []models.Estado
}

func (f *fakeApps) List(_ context.Context, estado models.Estado) ([]models.Application, error) {
	f.listed = append(f.listed, estado)
	return f.apps, nil
}

func (f *fakeApps) Progress(_ context.Context, id, _ string) (movements.Progress, error) {
	p, ok := f.progress[id]
	if !ok {
		return movements.Progress{}, errors.New("boom")
	}
	return p, nil
}

type fakeNotifier struct {
	sent []models.OutboundMessageRequest
}

func (n *fakeNotifier) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	n.sent = append(n.sent, req)
	return nil
}

func testConfig(manager string) config.Config {
	return config.Config{
		WhatsApp: config.WhatsAppConfig{ManagerID: manager},
		Alerts:   config.AlertsConfig{CronSchedule: "0 18 * * *", Timezone: "UTC"},
	}
}

func TestSweepAlerts(t *testing.T) {
	apps := &fakeApps{
		apps: []models.Application{{ID: "a1", Name: "Fumigación"}, {ID: "a2", Name: "Drench"}, {ID: "a3", Name: "Rota"}},
		progress: map[string]movements.Progress{
			"a1": {Alerts: []movements.Alert{
				{Level: movements.AlertError, Message: "Fungicida exceeded plan"},
				{Level: movements.AlertInfo, Message: "Adherente at 80.00% of plan"},
			}},
			"a2": {Alerts: []movements.Alert{{Level: movements.AlertInfo, Message: "only info"}}},
		},
	}
	notifier := &fakeNotifier{}
	s, err := NewScheduler(testConfig("573009998877"), apps, notifier, nil)
	require.NoError(t, err)

	require.NoError(t, s.SweepAlerts(context.Background()))

	assert.Equal(t, []models.Estado{models.EstadoEnEjecucion}, apps.listed)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "573009998877", notifier.sent[0].To)
	assert.Equal(t, "Alertas de consumo: Fumigación\n[ERROR] Fungicida exceeded plan", notifier.sent[0].Message)
}

func TestSweepAlertsWithoutManager(t *testing.T) {
	apps := &fakeApps{}
	s, err := NewScheduler(testConfig(""), apps, &fakeNotifier{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SweepAlerts(context.Background()))
	assert.Empty(t, apps.listed)
}

func TestNewSchedulerRejectsBadTimezone(t *testing.T) {
	cfg := testConfig("1")
	cfg.Alerts.Timezone = "Mars/Olympus"
	_, err := NewScheduler(cfg, &fakeApps{}, &fakeNotifier{}, nil)
	require.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig("1")
	cfg.Alerts.CronSchedule = "every day"
	s, err := NewScheduler(cfg, &fakeApps{}, &fakeNotifier{}, nil)
	require.NoError(t, err)
	require.Error(t, s.Start())
}
