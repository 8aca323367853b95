package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageLimit   = 50
	defaultByItemLimit = 20
	maxPageLimit       = 200
)

// MovementHandler handles movement ledger endpoints
type MovementHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(ledger *service.LedgerService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		ledger: ledger,
		logger: log,
	}
}

type createMovementRequest struct {
	ItemID      string  `json:"itemId" validate:"required"`
	Kind        string  `json:"kind" validate:"required"`
	Quantity    int     `json:"quantity"`
	Responsible string  `json:"responsible"`
	Note        *string `json:"note"`
}

// Create records a stock movement
func (h *MovementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.RecordMovement(r.Context(), service.RecordMovementInput{
		ItemID:      req.ItemID,
		Kind:        repository.MovementKind(req.Kind),
		Quantity:    req.Quantity,
		Responsible: req.Responsible,
		Note:        req.Note,
		CreatedBy:   actorID(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "movement recorded", result)
}

// List lists movements newest-first with pagination
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, page := pageParams(r)
	itemID := r.URL.Query().Get("itemId")

	movements, total, err := h.ledger.ListMovements(r.Context(), limit, page, itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	httputil.JSONWithMeta(w, http.StatusOK, "", movements, &httputil.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// ByItem lists the most recent movements for one item
func (h *MovementHandler) ByItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageLimit {
		limit = defaultByItemLimit
	}

	movements, err := h.ledger.MovementsByItem(r.Context(), itemID, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", movements)
}

// Stats aggregates the ledger over an optional inclusive date range
func (h *MovementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, err := dateParam(r, "startDate")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	end, err := dateParam(r, "endDate")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	stats, err := h.ledger.MovementsStats(r.Context(), start, end)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", stats)
}

// Get gets a movement by ID
func (h *MovementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movement, err := h.ledger.GetMovement(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", movement)
}

// Delete removes a movement record without reversing its stock effect
func (h *MovementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.ledger.DeleteMovement(r.Context(), id, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "movement deleted", nil)
}

// pageParams parses and clamps limit/page query parameters
func pageParams(r *http.Request) (limit, page int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	return limit, page
}

// dateParam parses an optional YYYY-MM-DD query parameter
func dateParam(r *http.Request, name string) (*dates.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	d, err := dates.Parse(raw)
	if err != nil {
		return nil, errors.BadRequest(name + " must be a YYYY-MM-DD date")
	}

	return &d, nil
}
