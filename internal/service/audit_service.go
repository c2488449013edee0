package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/kakao-auth/internal/events"
	"github.com/spec-kit/kakao-auth/internal/observability"
)

// AuditService records session lifecycle events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventRefreshIssued,
		events.EventRefreshRotated,
		events.EventRefreshRevoked,
		events.EventSignupTicketIssued,
		events.EventSignupCompleted,
	} {
		a.dispatcher.Subscribe(eventType, a.handleLifecycle)
	}
	a.dispatcher.Subscribe(events.EventRefreshReplayDetected, a.handleReplay)
}

func (a *AuditService) handleLifecycle(_ context.Context, event events.Event) error {
	a.metrics.RecordSessionEvent(string(event.Type))
	a.logger.Info("session event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Int64("user_id", event.Subject.UserID),
		zap.String("role", string(event.Subject.Role)),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleReplay(_ context.Context, event events.Event) error {
	a.metrics.RecordSessionEvent(string(event.Type))
	a.logger.Warn("refresh token replay rejected",
		zap.String("event_id", event.ID),
		zap.Time("at", event.Timestamp))
	return nil
}
