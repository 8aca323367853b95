package service

import (
	"context"
	stderrors "errors"

	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// casAttempts bounds the read-validate-write retry loop when a
// concurrent movement invalidates the quantity read.
const casAttempts = 3

// errStaleQuantity signals that the conditional item update lost to a
// concurrent writer and the whole cycle must be retried.
var errStaleQuantity = stderrors.New("stale quantity read")

// LedgerService records stock movements and applies their effect on
// item quantities
type LedgerService struct {
	db           *database.DB
	itemRepo     *repository.ItemRepository
	movementRepo *repository.MovementRepository
	publisher    *events.InventoryEventPublisher
	clock        dates.Clock
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	movementRepo *repository.MovementRepository,
	publisher *events.InventoryEventPublisher,
	clock dates.Clock,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		publisher:    publisher,
		clock:        clock,
		logger:       log,
	}
}

// RecordMovementInput carries a movement request
type RecordMovementInput struct {
	ItemID      string
	Kind        repository.MovementKind
	Quantity    int
	Responsible string
	Note        *string
	CreatedBy   *string
}

// MovementResult is a recorded movement plus the item's stock after it
type MovementResult struct {
	*repository.Movement
	StockActual int `json:"stockActual"`
}

// RecordMovement validates and records one stock movement. The
// movement insert and the item mutation run in one transaction; the
// item update is conditional on the quantity read that fed validation,
// and the cycle retries on conflict before giving up.
func (s *LedgerService) RecordMovement(ctx context.Context, input RecordMovementInput) (*MovementResult, error) {
	for attempt := 1; attempt <= casAttempts; attempt++ {
		result, err := s.recordOnce(ctx, input)
		if stderrors.Is(err, errStaleQuantity) {
			s.logger.Warn().
				Str("item_id", input.ItemID).
				Int("attempt", attempt).
				Msg("movement lost quantity race, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publisher.PublishMovementRecorded(ctx, result.Movement, result.StockActual)
		if input.Kind == repository.MovementDiscard {
			item := &repository.Item{ID: result.ItemID, Name: result.ItemName}
			s.publisher.PublishItemDiscarded(ctx, item, result.Quantity, result.Responsible)
		}

		return result, nil
	}

	return nil, errors.Conflict("item stock changed concurrently, retries exhausted")
}

func (s *LedgerService) recordOnce(ctx context.Context, input RecordMovementInput) (*MovementResult, error) {
	item, err := s.itemRepo.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	if item.Discarded {
		return nil, errors.Conflict("item has been discarded")
	}

	if !input.Kind.Valid() {
		return nil, errors.InvalidMovementKind(string(input.Kind))
	}

	movementQty := input.Quantity
	var newQuantity int

	switch input.Kind {
	case repository.MovementEntry:
		if input.Quantity <= 0 {
			return nil, errors.InvalidQuantity(input.Quantity)
		}
		newQuantity = item.Quantity + input.Quantity
	case repository.MovementExit:
		if input.Quantity <= 0 {
			return nil, errors.InvalidQuantity(input.Quantity)
		}
		if input.Quantity > item.Quantity {
			return nil, errors.InsufficientStock(item.Name, input.Quantity, item.Quantity)
		}
		// clamped even though the check above makes underflow unreachable
		newQuantity = max(0, item.Quantity-input.Quantity)
	case repository.MovementDiscard:
		// the discard records whatever stock it zeroes
		movementQty = item.Quantity
		newQuantity = 0
	}

	responsible := input.Responsible
	if responsible == "" {
		responsible = repository.DefaultResponsible
	}

	movement := &repository.Movement{
		ItemID:      item.ID,
		ItemName:    item.Name,
		Kind:        input.Kind,
		Quantity:    movementQty,
		Responsible: responsible,
		Date:        dates.Today(s.clock),
		Note:        input.Note,
		CreatedBy:   input.CreatedBy,
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.movementRepo.CreateInTx(ctx, tx, movement); err != nil {
			return err
		}

		var swapped bool
		var txErr error
		if input.Kind == repository.MovementDiscard {
			swapped, txErr = s.itemRepo.Discard(ctx, tx, item.ID, item.Quantity, responsible)
		} else {
			swapped, txErr = s.itemRepo.CompareAndSetQuantity(ctx, tx, item.ID, item.Quantity, newQuantity, responsible)
		}
		if txErr != nil {
			return txErr
		}
		if !swapped {
			return errStaleQuantity
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("movement_id", movement.ID).
		Str("item_id", item.ID).
		Str("kind", string(input.Kind)).
		Int("quantity", movementQty).
		Int("stock_actual", newQuantity).
		Msg("movement recorded")

	return &MovementResult{Movement: movement, StockActual: newQuantity}, nil
}

// GetMovement gets a movement by ID
func (s *LedgerService) GetMovement(ctx context.Context, id string) (*repository.Movement, error) {
	return s.movementRepo.GetByID(ctx, id)
}

// ListMovements lists movements newest-first with pagination metadata
func (s *LedgerService) ListMovements(ctx context.Context, limit, page int, itemID string) ([]*repository.Movement, int64, error) {
	return s.movementRepo.List(ctx, limit, page, itemID)
}

// MovementsByItem gets the most recent movements for one item
func (s *LedgerService) MovementsByItem(ctx context.Context, itemID string, limit int) ([]*repository.Movement, error) {
	return s.movementRepo.ListByItem(ctx, itemID, limit)
}

// MovementsStats aggregates the ledger over an inclusive date range
func (s *LedgerService) MovementsStats(ctx context.Context, start, end *dates.Date) (*repository.MovementStats, error) {
	return s.movementRepo.Stats(ctx, start, end)
}

// DeleteMovement removes a movement record without reconciling the
// stock effect it already applied. Administrative escape hatch.
func (s *LedgerService) DeleteMovement(ctx context.Context, id, deletedBy string) error {
	movement, err := s.movementRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.movementRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Warn().
		Str("movement_id", id).
		Str("item_id", movement.ItemID).
		Str("kind", string(movement.Kind)).
		Str("deleted_by", deletedBy).
		Msg("movement deleted, stock effect not reversed")

	s.publisher.PublishMovementDeleted(ctx, id, movement.ItemID, deletedBy)

	return nil
}
