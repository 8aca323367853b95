package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Inventory events
	EventItemCreated      = "inventory.item.created"
	EventItemUpdated      = "inventory.item.updated"
	EventItemDiscarded    = "inventory.item.discarded"
	EventMovementRecorded = "inventory.movement.recorded"
	EventMovementDeleted  = "inventory.movement.deleted"

	// User events
	EventUserRegistered  = "user.registered"
	EventUserRoleChanged = "user.role.changed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeUserEvents      = "user.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory Events

// ItemCreatedEvent is published when an item is registered in the inventory
type ItemCreatedEvent struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	Lot        string `json:"lot"`
	ExpiryDate string `json:"expiry_date"`
	Quantity   int    `json:"quantity"`
	Minimum    int    `json:"minimum"`
	CreatedBy  string `json:"created_by"`
}

// ItemUpdatedEvent is published when an item's fields are edited
type ItemUpdatedEvent struct {
	ItemID string         `json:"item_id"`
	Fields map[string]any `json:"fields"`
}

// ItemDiscardedEvent is published when an item is discarded
type ItemDiscardedEvent struct {
	ItemID            string `json:"item_id"`
	Name              string `json:"name"`
	DiscardedQuantity int    `json:"discarded_quantity"`
	Responsible       string `json:"responsible"`
}

// MovementRecordedEvent is published when a stock movement is recorded
type MovementRecordedEvent struct {
	MovementID  string `json:"movement_id"`
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	Responsible string `json:"responsible"`
	StockActual int    `json:"stock_actual"`
}

// MovementDeletedEvent is published when a movement record is removed
type MovementDeletedEvent struct {
	MovementID string `json:"movement_id"`
	ItemID     string `json:"item_id"`
	DeletedBy  string `json:"deleted_by"`
}

// User Events

// UserRegisteredEvent is published when a user account is created
type UserRegisteredEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// UserRoleChangedEvent is published when a user's role changes
type UserRoleChangedEvent struct {
	UserID  string `json:"user_id"`
	OldRole string `json:"old_role"`
	NewRole string `json:"new_role"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
