package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/botiquin/botiquin-backend/internal/inventory/handler"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock dates.Clock = func() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

type testEnv struct {
	router *chi.Mux
	mockDB *testutil.MockDB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "development")
	db := database.NewWithDB(mockDB.DB, log)

	itemRepo := repository.NewItemRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	ledger := service.NewLedgerService(db, itemRepo, movementRepo, nil, testClock, log)
	items := service.NewItemService(db, itemRepo, movementRepo, ledger, nil, testClock, log)
	alerts := service.NewAlertService(itemRepo, testClock)

	itemHandler := handler.NewItemHandler(items, log)
	alertHandler := handler.NewAlertHandler(alerts, log)
	movementHandler := handler.NewMovementHandler(ledger, log)

	r := chi.NewRouter()
	r.Route("/api/items", func(r chi.Router) {
		r.Get("/", itemHandler.List)
		r.Get("/alerts", alertHandler.Get)
		r.Get("/search", itemHandler.Search)
		r.Get("/{id}", itemHandler.Get)
		r.Post("/", itemHandler.Create)
		r.Put("/{id}", itemHandler.Update)
		r.Delete("/{id}", itemHandler.Delete)
	})
	r.Route("/api/movements", func(r chi.Router) {
		r.Get("/", movementHandler.List)
		r.Get("/stats", movementHandler.Stats)
		r.Get("/item/{itemId}", movementHandler.ByItem)
		r.Get("/{id}", movementHandler.Get)
		r.Post("/", movementHandler.Create)
		r.Delete("/{id}", movementHandler.Delete)
	})

	return &testEnv{router: r, mockDB: mockDB}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func itemRows() *sqlmock.Rows {
	return testutil.MockRows(
		"id", "name", "lot", "expiry_date", "unit", "quantity", "minimum",
		"discarded", "last_responsible", "created_at", "updated_at", "created_by",
	)
}

func TestItemHandler_Search_RequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	rec := env.do(t, http.MethodGet, "/api/items/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestItemHandler_Search(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WillReturnRows(itemRows().
			AddRow("a", "Paracetamol 500mg", "L-1", now, "tablets", 40, 10, false, "—", now, now, nil).
			AddRow("b", "Saline", "SAL-1", now, "ml", 12, 4, false, "—", now, now, nil))

	rec := env.do(t, http.MethodGet, "/api/items/search?q=paraceta", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var items []repository.Item
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Paracetamol 500mg", items[0].Name)
}

func TestItemHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("INSERT INTO items").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	env.mockDB.ExpectBegin()
	env.mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	env.mockDB.ExpectCommit()

	body := `{"name":"Paracetamol 500mg","lot":"L-2025-014","expiryDate":"2026-03-01","unit":"tablets","quantity":120,"minimum":20}`
	rec := env.do(t, http.MethodPost, "/api/items", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "item created", resp.Message)
	env.mockDB.ExpectationsWereMet(t)
}

func TestItemHandler_Create_MissingName(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	body := `{"lot":"L-1","expiryDate":"2026-03-01"}`
	rec := env.do(t, http.MethodPost, "/api/items", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "Name")
}

func TestMovementHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WithArgs("item-1").
		WillReturnRows(itemRows().
			AddRow("item-1", "Paracetamol 500mg", "L-77", now, "tablets", 20, 10, false, "—", now, now, nil))
	env.mockDB.ExpectBegin()
	env.mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("created_at").AddRow(now))
	env.mockDB.ExpectExec("UPDATE items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mockDB.ExpectCommit()

	body := `{"itemId":"item-1","kind":"entry","quantity":30,"responsible":"Luis"}`
	rec := env.do(t, http.MethodPost, "/api/movements", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.EqualValues(t, 50, result["stockActual"])
	assert.Equal(t, "entry", result["kind"])
	assert.Equal(t, "2025-06-15", result["date"])
}

func TestMovementHandler_Create_UnknownKind(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WithArgs("item-1").
		WillReturnRows(itemRows().
			AddRow("item-1", "Paracetamol 500mg", "L-77", now, "tablets", 20, 10, false, "—", now, now, nil))

	body := `{"itemId":"item-1","kind":"adjustment","quantity":5}`
	rec := env.do(t, http.MethodPost, "/api/movements", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_KIND", resp.Error.Code)
}

func TestMovementHandler_Create_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WithArgs("item-1").
		WillReturnRows(itemRows().
			AddRow("item-1", "Paracetamol 500mg", "L-77", now, "tablets", 20, 10, false, "—", now, now, nil))

	body := `{"itemId":"item-1","kind":"exit","quantity":25}`
	rec := env.do(t, http.MethodPost, "/api/movements", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Equal(t, "25", resp.Error.Details["requested"])
	assert.Equal(t, "20", resp.Error.Details["available"])
}

func TestMovementHandler_List_PaginationDefaults(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()

	t.Run("defaults applied to missing params", func(t *testing.T) {
		env.mockDB.ExpectQuery("SELECT COUNT(*) FROM movements").
			WillReturnRows(testutil.MockRows("count").AddRow(120))
		env.mockDB.ExpectQuery("SELECT").
			WithArgs(50, 0).
			WillReturnRows(testutil.MockRows(
				"id", "item_id", "item_name", "kind", "quantity", "responsible",
				"date", "note", "created_at", "created_by",
			).AddRow("m-1", "item-1", "Paracetamol 500mg", "entry", 30, "Luis", now, nil, now, nil))

		rec := env.do(t, http.MethodGet, "/api/movements", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 50, resp.Meta.Limit)
		assert.EqualValues(t, 120, resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("invalid params clamped to defaults", func(t *testing.T) {
		env.mockDB.ExpectQuery("SELECT COUNT(*) FROM movements").
			WillReturnRows(testutil.MockRows("count").AddRow(0))
		env.mockDB.ExpectQuery("SELECT").
			WithArgs(50, 0).
			WillReturnRows(testutil.MockRows(
				"id", "item_id", "item_name", "kind", "quantity", "responsible",
				"date", "note", "created_at", "created_by",
			))

		rec := env.do(t, http.MethodGet, "/api/movements?limit=-3&page=0", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 50, resp.Meta.Limit)
	})
}

func TestMovementHandler_Stats_BadDate(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	rec := env.do(t, http.MethodGet, "/api/movements/stats?startDate=15-06-2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WillReturnRows(itemRows().
			AddRow("a", "Expired Syrup", "L-1", now.AddDate(0, 0, -1), "ml", 30, 5, false, "—", now, now, nil).
			AddRow("b", "Low Gauze", "L-2", now.AddDate(1, 0, 0), "units", 2, 5, false, "—", now, now, nil))

	rec := env.do(t, http.MethodGet, "/api/items/alerts", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var report struct {
		Expired    []repository.Item `json:"expired"`
		NearExpiry []repository.Item `json:"nearExpiry"`
		LowStock   []repository.Item `json:"lowStock"`
		Total      int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Len(t, report.Expired, 1)
	assert.Len(t, report.LowStock, 1)
	assert.Equal(t, 2, report.Total)
}

func TestItemHandler_Update_RejectsQuantityEdit(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	rec := env.do(t, http.MethodPut, "/api/items/item-1", `{"minimum": 15, "quantity": 99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "quantity")
	env.mockDB.ExpectationsWereMet(t)
}

func TestItemHandler_Update_MinimumOnly(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WithArgs("item-1").
		WillReturnRows(itemRows().AddRow(
			"item-1", "Paracetamol 500mg", "L-77", now, "tablets",
			40, 10, false, "—", now, now, nil,
		))
	env.mockDB.ExpectExec("UPDATE items SET minimum = $2, updated_at = NOW() WHERE id = $1").
		WithArgs("item-1", 15).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(t, http.MethodPut, "/api/items/item-1", `{"minimum": 15}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "item updated", resp.Message)
	env.mockDB.ExpectationsWereMet(t)
}

func TestMovementHandler_ByItem_DefaultLimit(t *testing.T) {
	env := newTestEnv(t)
	defer env.mockDB.Close()

	now := testClock()
	env.mockDB.ExpectQuery("SELECT").
		WithArgs("item-1", 20).
		WillReturnRows(testutil.MockRows(
			"id", "item_id", "item_name", "kind", "quantity", "responsible",
			"date", "note", "created_at", "created_by",
		).AddRow("mov-1", "item-1", "Paracetamol 500mg", "entry", 20, "Luis", now, nil, now, nil))

	rec := env.do(t, http.MethodGet, "/api/movements/item/item-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	env.mockDB.ExpectationsWereMet(t)
}
