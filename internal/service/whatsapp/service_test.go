package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/applications"
	"github.com/mamadbah2/orchard/pkg/clients/anthropic"
	client "github.com/mamadbah2/orchard/pkg/clients/whatsapp"
)

type recordingClient struct {
	sent []client.SendTextMessageRequest
}

func (c *recordingClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	c.sent = append(c.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

type stubDispatcher struct {
	commands  []models.Command
	movements []applications.MovementInput
	appIDs    []string
}

func (d *stubDispatcher) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	d.commands = append(d.commands, cmd)
	return "ok " + string(cmd.Type), nil
}

func (d *stubDispatcher) RecordMovement(_ context.Context, appID string, in applications.MovementInput) (string, error) {
	d.appIDs = append(d.appIDs, appID)
	d.movements = append(d.movements, in)
	return "Movimiento registrado", nil
}

func (d *stubDispatcher) ActiveApplications(context.Context) (string, error) {
	return "- app1", nil
}

type scriptedAI struct {
	steps []anthropic.ConversationState
	seen  []anthropic.ConversationState
	err   error
}

func (a *scriptedAI) ProcessConversation(_ context.Context, state anthropic.ConversationState, reference, _ string) (anthropic.ConversationState, string, error) {
	a.seen = append(a.seen, state)
	if a.err != nil {
		return state, "", a.err
	}
	next := a.steps[0]
	a.steps = a.steps[1:]
	next.Responsible = state.Responsible
	return next, "¿Algo más? " + reference, nil
}

func textMessage(from, body string) models.WebhookPayload {
	return models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Messages: []models.InboundMessage{{From: from, ID: "wamid", Type: "text", Text: &models.TextContent{Body: body}}}},
	}}}}}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "secret"}, &recordingClient{}, nil, &stubDispatcher{}, nil)

	challenge, err := svc.VerifyWebhookToken("subscribe", "secret", "123")
	require.NoError(t, err)
	assert.Equal(t, "123", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "123")
	require.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "secret", "123")
	require.Error(t, err)
}

func TestHandleWebhookCommand(t *testing.T) {
	wa := &recordingClient{}
	dispatcher := &stubDispatcher{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textMessage("573001", "/avance app1")))

	require.Len(t, dispatcher.commands, 1)
	assert.Equal(t, models.CommandProgress, dispatcher.commands[0].Type)
	require.Len(t, wa.sent, 1)
	assert.Equal(t, "573001", wa.sent[0].To)
	assert.Equal(t, "ok avance", wa.sent[0].Body)
}

func TestHandleWebhookFreeTextWithoutAI(t *testing.T) {
	wa := &recordingClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, &stubDispatcher{}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textMessage("573001", "gasté 2 litros")))
	require.Len(t, wa.sent, 1)
	assert.Equal(t, noAIReply, wa.sent[0].Body)
}

func TestHandleWebhookConversationRecordsMovement(t *testing.T) {
	qty := 2.5
	ai := &scriptedAI{steps: []anthropic.ConversationState{
		{Step: anthropic.StepCollecting, ApplicationID: "app1"},
		{Step: anthropic.StepCompleted, ApplicationID: "app1", LotID: "L1", ProductID: "fung", Quantity: &qty, Notes: "RAS"},
	}}
	wa := &recordingClient{}
	dispatcher := &stubDispatcher{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, ai, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textMessage("573001", "fumigación app1")))
	require.Len(t, wa.sent, 1)
	assert.Equal(t, "¿Algo más? - app1", wa.sent[0].Body)
	assert.Equal(t, "app1", svc.sessions.GetSession("573001").ApplicationID)

	require.NoError(t, svc.HandleWebhook(context.Background(), textMessage("573001", "2.5 de fungicida en L1")))
	require.Len(t, ai.seen, 2)
	assert.Equal(t, "app1", ai.seen[1].ApplicationID)
	assert.Equal(t, "573001", ai.seen[1].Responsible)

	require.Len(t, dispatcher.movements, 1)
	assert.Equal(t, "app1", dispatcher.appIDs[0])
	assert.Equal(t, applications.MovementInput{LotID: "L1", ProductID: "fung", Quantity: 2.5, Responsible: "573001", Note: "RAS"}, dispatcher.movements[0])
	assert.Equal(t, "Movimiento registrado", wa.sent[1].Body)
	assert.Empty(t, svc.sessions.GetSession("573001").ApplicationID)
}

func TestHandleWebhookConversationFailureFallsBack(t *testing.T) {
	wa := &recordingClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, &scriptedAI{err: errors.New("timeout")}, &stubDispatcher{}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textMessage("573001", "hola")))
	require.Len(t, wa.sent, 1)
	assert.Equal(t, noAIReply, wa.sent[0].Body)
}

func TestHandleWebhookIgnoresMedia(t *testing.T) {
	wa := &recordingClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, &stubDispatcher{}, nil)
	payload := models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Messages: []models.InboundMessage{{From: "1", Type: "image", Image: &models.MediaContent{}}}},
	}}}}}

	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	assert.Empty(t, wa.sent)
}

func TestSessionExpires(t *testing.T) {
	sm := NewSessionManager()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	sm.UpdateSession("u", anthropic.ConversationState{Step: anthropic.StepCollecting, LotID: "L1"})
	assert.Equal(t, "L1", sm.GetSession("u").LotID)

	now = now.Add(DefaultSessionTTL + time.Minute)
	assert.Empty(t, sm.GetSession("u").LotID)
}
