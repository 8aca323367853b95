package events

import (
	"context"

	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// UserEventPublisher publishes user account events
type UserEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewUserEventPublisher creates a new user event publisher
func NewUserEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*UserEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeUserEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &UserEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishUserRegistered publishes a user registered event
func (p *UserEventPublisher) PublishUserRegistered(ctx context.Context, userID, email, name, role string) {
	if p == nil {
		return
	}

	data := messaging.UserRegisteredEvent{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserRegistered, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("failed to publish user registered event")
	}
}

// PublishUserRoleChanged publishes a user role changed event
func (p *UserEventPublisher) PublishUserRoleChanged(ctx context.Context, userID, oldRole, newRole string) {
	if p == nil {
		return
	}

	data := messaging.UserRoleChangedEvent{
		UserID:  userID,
		OldRole: oldRole,
		NewRole: newRole,
	}

	if err := p.publisher.Publish(ctx, messaging.EventUserRoleChanged, data); err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("failed to publish user role changed event")
	}
}
