package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/assist-service/internal/config"
	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/events"
)

// NotificationService is the in-process notification sink. It logs each
// notification, publishes a follow_up_due event for subscribers, and stubs the
// outbound email/webhook channels the way delivery would hook in.
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

// Notify accepts a notification event from the follow-up scanner.
func (n *NotificationService) Notify(ctx context.Context, notification domain.Notification) error {
	n.logger.Info("notification",
		zap.String("user_id", notification.UserID),
		zap.String("type", string(notification.Type)),
		zap.String("related_id", notification.RelatedID),
		zap.String("title", notification.Title))

	if n.dispatcher != nil {
		_ = n.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventFollowUpDue,
			RequestID: notification.RelatedID,
			ActorID:   notification.UserID,
			Timestamp: notification.CreatedAt,
			Payload:   notification,
		})
	}
	return nil
}

// RegisterHandlers subscribes delivery stubs to domain events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleRequestCreated)
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleRequestStatusChanged)
	n.dispatcher.Subscribe(events.EventRequestCommentAdded, n.handleRequestCommentAdded)
	n.dispatcher.Subscribe(events.EventFollowUpDue, n.handleFollowUpDue)
}

func (n *NotificationService) handleRequestCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestCreated", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRequestStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestStatusChanged", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRequestCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestCommentAdded", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleFollowUpDue(ctx context.Context, event events.Event) error {
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("request_id", event.RequestID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("request_id", event.RequestID),
		zap.String("event_type", string(event.Type)))
}
