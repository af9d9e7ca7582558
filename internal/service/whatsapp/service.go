package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/config"
	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/applications"
	"github.com/mamadbah2/orchard/internal/service/commands"
	"github.com/mamadbah2/orchard/pkg/clients/anthropic"
	client "github.com/mamadbah2/orchard/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// MessagingService describes the operations the HTTP layer and scheduler can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	ai         anthropic.Client
	dispatcher commands.Dispatcher
	sessions   *SessionManager
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. A nil ai client disables the
// free-text conversation; slash commands keep working.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, ai anthropic.Client, dispatcher commands.Dispatcher, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     client,
		ai:         ai,
		dispatcher: dispatcher,
		sessions:   NewSessionManager(),
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

const noAIReply = "Envía /ayuda para ver los comandos disponibles."

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := strings.TrimSpace(extractMessageText(msg))
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	var (
		reply string
		err   error
	)
	if models.IsCommand(text) {
		cmd := models.ParseCommand(text)
		s.logger.Info("parsed inbound command",
			zap.String("from", msg.From),
			zap.String("command", string(cmd.Type)),
			zap.Strings("args", cmd.Args))
		reply, err = s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	} else {
		reply, err = s.converse(ctx, msg.From, text)
	}
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}

	return s.send(ctx, msg.From, reply)
}

// converse advances the sender's movement conversation and records the movement once the
// assistant marks it complete.
func (s *MetaWhatsAppService) converse(ctx context.Context, from, text string) (string, error) {
	if s.ai == nil {
		return noAIReply, nil
	}

	reference, err := s.dispatcher.ActiveApplications(ctx)
	if err != nil {
		return "", fmt.Errorf("list active applications: %w", err)
	}

	state := s.sessions.GetSession(from)
	state.Responsible = from

	next, reply, err := s.ai.ProcessConversation(ctx, state, reference, text)
	if err != nil {
		s.logger.Warn("conversation step failed", zap.String("from", from), zap.Error(err))
		if reply != "" {
			return reply, nil
		}
		return noAIReply, nil
	}

	if next.Step != anthropic.StepCompleted {
		s.sessions.UpdateSession(from, next)
		return reply, nil
	}

	s.sessions.ClearSession(from)
	confirmation, err := s.dispatcher.RecordMovement(ctx, next.ApplicationID, movementInput(next))
	if err != nil {
		return "", err
	}
	return confirmation, nil
}

func movementInput(state anthropic.ConversationState) applications.MovementInput {
	in := applications.MovementInput{
		LotID:       state.LotID,
		ProductID:   state.ProductID,
		Responsible: state.Responsible,
		Note:        state.Notes,
		Containers:  state.Containers,
	}
	if state.Quantity != nil {
		in.Quantity = *state.Quantity
	}
	return in
}

// SendOutbound lets internal operators and the scheduler push notifications.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	return err
}

func (s *MetaWhatsAppService) send(ctx context.Context, to, body string) error {
	return s.SendOutbound(ctx, models.OutboundMessageRequest{To: to, Message: body})
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return msg.Text.Body
	}

	if msg.Interactive != nil {
		if msg.Interactive.ButtonReply != nil {
			return msg.Interactive.ButtonReply.ID
		}
		if msg.Interactive.ListReply != nil {
			return msg.Interactive.ListReply.ID
		}
	}

	return ""
}
