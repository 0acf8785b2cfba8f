package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-bridge/internal/config"
	"github.com/spec-kit/handoff-bridge/internal/events"
)

// NotificationService surfaces bridge events to operators.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventDeduplicated, n.handleDeduplicated)
	n.dispatcher.Subscribe(events.EventNoteAppendFailed, n.handleNoteAppendFailed)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDeduplicated(ctx context.Context, event events.Event) error {
	n.logger.Info("HandoffDeduplicated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// handleNoteAppendFailed flags partial successes: the ticket exists but
// its note is missing, so an operator may need to follow up.
func (n *NotificationService) handleNoteAppendFailed(ctx context.Context, event events.Event) error {
	n.logger.Warn("NoteAppendFailed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
