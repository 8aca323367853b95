package service

import (
	"context"
	"strings"

	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// ItemService handles item lifecycle and queries
type ItemService struct {
	db           *database.DB
	itemRepo     *repository.ItemRepository
	movementRepo *repository.MovementRepository
	ledger       *LedgerService
	publisher    *events.InventoryEventPublisher
	clock        dates.Clock
	logger       *logger.Logger
}

// NewItemService creates a new item service
func NewItemService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	movementRepo *repository.MovementRepository,
	ledger *LedgerService,
	publisher *events.InventoryEventPublisher,
	clock dates.Clock,
	log *logger.Logger,
) *ItemService {
	return &ItemService{
		db:           db,
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		ledger:       ledger,
		publisher:    publisher,
		clock:        clock,
		logger:       log,
	}
}

// CreateItemInput carries a new item registration
type CreateItemInput struct {
	Name        string
	Lot         string
	ExpiryDate  dates.Date
	Unit        string
	Quantity    int
	Minimum     int
	Responsible string
	CreatedBy   *string
}

// initialStockNote is recorded on the entry movement written alongside
// an item created with stock on hand.
const initialStockNote = "initial stock"

// CreateItem registers a new item. A starting quantity above zero also
// writes the matching entry movement; if that second write fails the
// item already exists, so the error surfaces as a partial failure
// rather than rolling the item back.
func (s *ItemService) CreateItem(ctx context.Context, input CreateItemInput) (*repository.Item, error) {
	responsible := input.Responsible
	if responsible == "" {
		responsible = repository.DefaultResponsible
	}

	item := &repository.Item{
		Name:            input.Name,
		Lot:             input.Lot,
		ExpiryDate:      input.ExpiryDate,
		Unit:            input.Unit,
		Quantity:        input.Quantity,
		Minimum:         input.Minimum,
		LastResponsible: responsible,
		CreatedBy:       input.CreatedBy,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	if input.Quantity > 0 {
		note := initialStockNote
		movement := &repository.Movement{
			ItemID:      item.ID,
			ItemName:    item.Name,
			Kind:        repository.MovementEntry,
			Quantity:    input.Quantity,
			Responsible: responsible,
			Date:        dates.Today(s.clock),
			Note:        &note,
			CreatedBy:   input.CreatedBy,
		}

		err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			return s.movementRepo.CreateInTx(ctx, tx, movement)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("item_id", item.ID).Msg("initial stock movement failed after item create")
			return nil, errors.PartialFailure("item created but initial stock movement failed", err)
		}
	}

	s.publisher.PublishItemCreated(ctx, item)

	s.logger.Info().
		Str("item_id", item.ID).
		Str("name", item.Name).
		Int("quantity", item.Quantity).
		Msg("item created")

	return item, nil
}

// UpdateItemInput carries a partial item edit; nil fields are left
// unchanged. Quantity is absent on purpose: stock is only mutated by
// the ledger, an edit must never write back a stale read of it.
type UpdateItemInput struct {
	Name        *string
	Lot         *string
	ExpiryDate  *dates.Date
	Unit        *string
	Minimum     *int
	Responsible *string
}

// UpdateItem applies a partial edit to an item
func (s *ItemService) UpdateItem(ctx context.Context, id string, input UpdateItemInput) (*repository.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	fields := map[string]interface{}{}
	if input.Name != nil {
		item.Name = *input.Name
		changed["name"] = *input.Name
		fields["name"] = *input.Name
	}
	if input.Lot != nil {
		item.Lot = *input.Lot
		changed["lot"] = *input.Lot
		fields["lot"] = *input.Lot
	}
	if input.ExpiryDate != nil {
		item.ExpiryDate = *input.ExpiryDate
		changed["expiryDate"] = input.ExpiryDate.String()
		fields["expiry_date"] = *input.ExpiryDate
	}
	if input.Unit != nil {
		item.Unit = *input.Unit
		changed["unit"] = *input.Unit
		fields["unit"] = *input.Unit
	}
	if input.Minimum != nil {
		item.Minimum = *input.Minimum
		changed["minimum"] = *input.Minimum
		fields["minimum"] = *input.Minimum
	}
	if input.Responsible != nil {
		item.LastResponsible = *input.Responsible
		changed["lastResponsible"] = *input.Responsible
		fields["last_responsible"] = *input.Responsible
	}

	if len(fields) == 0 {
		return item, nil
	}

	if err := s.itemRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}

	s.publisher.PublishItemUpdated(ctx, item.ID, changed)

	return item, nil
}

// GetItem gets an item by ID
func (s *ItemService) GetItem(ctx context.Context, id string) (*repository.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// ListItems lists items, optionally restricted by discarded state
func (s *ItemService) ListItems(ctx context.Context, discarded *bool) ([]*repository.Item, error) {
	return s.itemRepo.List(ctx, discarded)
}

// SearchItems filters the active item set where name, lot or unit
// contains the trimmed term, case-insensitively. A blank term returns
// the full active set.
func (s *ItemService) SearchItems(ctx context.Context, term string) ([]*repository.Item, error) {
	items, err := s.itemRepo.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	return FilterItems(items, term), nil
}

// FilterItems applies the in-memory search used by SearchItems
func FilterItems(items []*repository.Item, term string) []*repository.Item {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return items
	}

	matched := []*repository.Item{}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), term) ||
			strings.Contains(strings.ToLower(item.Lot), term) ||
			strings.Contains(strings.ToLower(item.Unit), term) {
			matched = append(matched, item)
		}
	}

	return matched
}

// DiscardItem zeroes an item's stock and marks it discarded via a
// discard movement
func (s *ItemService) DiscardItem(ctx context.Context, id, responsible string, createdBy *string) (*MovementResult, error) {
	return s.ledger.RecordMovement(ctx, RecordMovementInput{
		ItemID:      id,
		Kind:        repository.MovementDiscard,
		Responsible: responsible,
		CreatedBy:   createdBy,
	})
}
