package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock dates.Clock = func() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func newLedger(t *testing.T) (*service.LedgerService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "development")
	db := database.NewWithDB(mockDB.DB, log)
	itemRepo := repository.NewItemRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	ledger := service.NewLedgerService(db, itemRepo, movementRepo, nil, testClock, log)
	return ledger, mockDB
}

func expectItemRead(mockDB *testutil.MockDB, id string, quantity int, discarded bool) {
	now := testClock()
	mockDB.ExpectQuery("SELECT").
		WithArgs(id).
		WillReturnRows(testutil.MockRows(
			"id", "name", "lot", "expiry_date", "unit", "quantity", "minimum",
			"discarded", "last_responsible", "created_at", "updated_at", "created_by",
		).AddRow(id, "Paracetamol 500mg", "L-77", now, "tablets", quantity, 10, discarded, "—", now, now, nil))
}

func TestLedgerService_RecordMovement_Entry(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	expectItemRead(mockDB, "item-1", 20, false)
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
	mockDB.ExpectExec("UPDATE items").
		WithArgs("item-1", 20, 50, "Luis").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	result, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:      "item-1",
		Kind:        repository.MovementEntry,
		Quantity:    30,
		Responsible: "Luis",
	})
	require.NoError(t, err)
	assert.Equal(t, 50, result.StockActual)
	assert.Equal(t, repository.MovementEntry, result.Kind)
	assert.Equal(t, 30, result.Quantity)
	assert.Equal(t, "Paracetamol 500mg", result.ItemName)
	assert.Equal(t, dates.New(2025, 6, 15), result.Date)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_RecordMovement_ExitInsufficientStock(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	expectItemRead(mockDB, "item-1", 20, false)

	_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:   "item-1",
		Kind:     repository.MovementExit,
		Quantity: 25,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "25", appErr.Details["requested"])
	assert.Equal(t, "20", appErr.Details["available"])

	// no writes happen on a rejected exit
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_RecordMovement_ExitAtExactStock(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	expectItemRead(mockDB, "item-1", 20, false)
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
	mockDB.ExpectExec("UPDATE items").
		WithArgs("item-1", 20, 0, "—").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	result, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:   "item-1",
		Kind:     repository.MovementExit,
		Quantity: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.StockActual)
	assert.Equal(t, "—", result.Responsible)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_RecordMovement_Discard(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	expectItemRead(mockDB, "item-1", 35, false)
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
	mockDB.ExpectExec("UPDATE items").
		WithArgs("item-1", 35, "Ana").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	// quantity in the request is ignored for discards
	result, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:      "item-1",
		Kind:        repository.MovementDiscard,
		Quantity:    999,
		Responsible: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.StockActual)
	assert.Equal(t, 35, result.Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_RecordMovement_Validation(t *testing.T) {
	t.Run("unknown item", func(t *testing.T) {
		ledger, mockDB := newLedger(t)
		defer mockDB.Close()

		mockDB.ExpectQuery("SELECT").
			WithArgs("missing").
			WillReturnError(errNoRows())

		_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
			ItemID:   "missing",
			Kind:     repository.MovementEntry,
			Quantity: 1,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("unknown kind", func(t *testing.T) {
		ledger, mockDB := newLedger(t)
		defer mockDB.Close()

		expectItemRead(mockDB, "item-1", 20, false)

		_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
			ItemID:   "item-1",
			Kind:     repository.MovementKind("adjustment"),
			Quantity: 5,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidMovementKind))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		for _, quantity := range []int{0, -5} {
			ledger, mockDB := newLedger(t)

			expectItemRead(mockDB, "item-1", 20, false)

			_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
				ItemID:   "item-1",
				Kind:     repository.MovementEntry,
				Quantity: quantity,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidQuantity))
			mockDB.Close()
		}
	})

	t.Run("discarded item rejects all movements", func(t *testing.T) {
		ledger, mockDB := newLedger(t)
		defer mockDB.Close()

		expectItemRead(mockDB, "item-1", 0, true)

		_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
			ItemID:   "item-1",
			Kind:     repository.MovementEntry,
			Quantity: 10,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})
}

func TestLedgerService_RecordMovement_RetriesOnQuantityRace(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	// first cycle: read 20, conditional update loses to a concurrent writer
	expectItemRead(mockDB, "item-1", 20, false)
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
	mockDB.ExpectExec("UPDATE items").
		WithArgs("item-1", 20, 50, "Luis").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	// second cycle: fresh read sees 25, swap applies
	expectItemRead(mockDB, "item-1", 25, false)
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
	mockDB.ExpectExec("UPDATE items").
		WithArgs("item-1", 25, 55, "Luis").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	result, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:      "item-1",
		Kind:        repository.MovementEntry,
		Quantity:    30,
		Responsible: "Luis",
	})
	require.NoError(t, err)
	assert.Equal(t, 55, result.StockActual)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_RecordMovement_RetriesExhausted(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	for i := 0; i < 3; i++ {
		expectItemRead(mockDB, "item-1", 20, false)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery("INSERT INTO movements").
			WillReturnRows(testutil.MockRows("created_at").AddRow(testClock()))
		mockDB.ExpectExec("UPDATE items").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mockDB.ExpectRollback()
	}

	_, err := ledger.RecordMovement(context.Background(), service.RecordMovementInput{
		ItemID:   "item-1",
		Kind:     repository.MovementEntry,
		Quantity: 30,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_DeleteMovement(t *testing.T) {
	ledger, mockDB := newLedger(t)
	defer mockDB.Close()

	now := testClock()
	mockDB.ExpectQuery("SELECT").
		WithArgs("m-1").
		WillReturnRows(testutil.MockRows(
			"id", "item_id", "item_name", "kind", "quantity", "responsible",
			"date", "note", "created_at", "created_by",
		).AddRow("m-1", "item-1", "Paracetamol 500mg", "exit", 5, "Luis", now, nil, now, nil))
	mockDB.ExpectExec("DELETE FROM movements").
		WithArgs("m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.DeleteMovement(context.Background(), "m-1", "admin-1"))
	mockDB.ExpectationsWereMet(t)
}
