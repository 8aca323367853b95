package events

import (
	"context"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishItemCreated publishes an item created event
func (p *InventoryEventPublisher) PublishItemCreated(ctx context.Context, item *repository.Item) {
	if p == nil {
		return
	}

	createdBy := ""
	if item.CreatedBy != nil {
		createdBy = *item.CreatedBy
	}

	data := messaging.ItemCreatedEvent{
		ItemID:     item.ID,
		Name:       item.Name,
		Lot:        item.Lot,
		ExpiryDate: item.ExpiryDate.String(),
		Quantity:   item.Quantity,
		Minimum:    item.Minimum,
		CreatedBy:  createdBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemCreated, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item created event")
	}
}

// PublishItemUpdated publishes an item updated event with the changed fields
func (p *InventoryEventPublisher) PublishItemUpdated(ctx context.Context, itemID string, fields map[string]any) {
	if p == nil {
		return
	}

	data := messaging.ItemUpdatedEvent{
		ItemID: itemID,
		Fields: fields,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", itemID).Msg("failed to publish item updated event")
	}
}

// PublishItemDiscarded publishes an item discarded event
func (p *InventoryEventPublisher) PublishItemDiscarded(ctx context.Context, item *repository.Item, discardedQuantity int, responsible string) {
	if p == nil {
		return
	}

	data := messaging.ItemDiscardedEvent{
		ItemID:            item.ID,
		Name:              item.Name,
		DiscardedQuantity: discardedQuantity,
		Responsible:       responsible,
	}

	if err := p.publisher.Publish(ctx, messaging.EventItemDiscarded, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to publish item discarded event")
	}
}

// PublishMovementRecorded publishes a movement recorded event
func (p *InventoryEventPublisher) PublishMovementRecorded(ctx context.Context, m *repository.Movement, stockActual int) {
	if p == nil {
		return
	}

	data := messaging.MovementRecordedEvent{
		MovementID:  m.ID,
		ItemID:      m.ItemID,
		ItemName:    m.ItemName,
		Kind:        string(m.Kind),
		Quantity:    m.Quantity,
		Responsible: m.Responsible,
		StockActual: stockActual,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish movement recorded event")
	}
}

// PublishMovementDeleted publishes a movement deleted event
func (p *InventoryEventPublisher) PublishMovementDeleted(ctx context.Context, movementID, itemID, deletedBy string) {
	if p == nil {
		return
	}

	data := messaging.MovementDeletedEvent{
		MovementID: movementID,
		ItemID:     itemID,
		DeletedBy:  deletedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", movementID).Msg("failed to publish movement deleted event")
	}
}
