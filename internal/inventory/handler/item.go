package handler

import (
	"net/http"
	"strconv"

	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	items  *service.ItemService
	logger *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(items *service.ItemService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		items:  items,
		logger: log,
	}
}

type createItemRequest struct {
	Name        string     `json:"name" validate:"required"`
	Lot         string     `json:"lot" validate:"required"`
	ExpiryDate  dates.Date `json:"expiryDate" validate:"required"`
	Unit        string     `json:"unit"`
	Quantity    int        `json:"quantity" validate:"gte=0"`
	Minimum     int        `json:"minimum" validate:"gte=0"`
	Responsible string     `json:"responsible"`
}

type updateItemRequest struct {
	Name        *string     `json:"name"`
	Lot         *string     `json:"lot"`
	ExpiryDate  *dates.Date `json:"expiryDate"`
	Unit        *string     `json:"unit"`
	Quantity    *int        `json:"quantity"`
	Minimum     *int        `json:"minimum"`
	Responsible *string     `json:"responsible"`
}

// errQuantityNotEditable rejects direct quantity edits: stock only
// changes through recorded movements.
func errQuantityNotEditable() error {
	return errors.BadRequest("quantity cannot be edited directly, record a movement instead")
}

// List lists items, optionally restricted by discarded state or a
// search term
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	if term := r.URL.Query().Get("search"); term != "" {
		items, err := h.items.SearchItems(r.Context(), term)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, "", items)
		return
	}

	var discarded *bool
	if raw := r.URL.Query().Get("discarded"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("discarded must be a boolean"))
			return
		}
		discarded = &parsed
	}

	items, err := h.items.ListItems(r.Context(), discarded)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", items)
}

// Search searches active items by name, lot or unit
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		httputil.Error(w, errors.BadRequest("query parameter q is required"))
		return
	}

	items, err := h.items.SearchItems(r.Context(), term)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", items)
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", item)
}

// Create registers a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.items.CreateItem(r.Context(), service.CreateItemInput{
		Name:        req.Name,
		Lot:         req.Lot,
		ExpiryDate:  req.ExpiryDate,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		Minimum:     req.Minimum,
		Responsible: req.Responsible,
		CreatedBy:   actorID(r),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "item created", item)
}

// Update applies a partial edit to an item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.Quantity != nil {
		httputil.Error(w, errQuantityNotEditable())
		return
	}

	item, err := h.items.UpdateItem(r.Context(), id, service.UpdateItemInput{
		Name:        req.Name,
		Lot:         req.Lot,
		ExpiryDate:  req.ExpiryDate,
		Unit:        req.Unit,
		Minimum:     req.Minimum,
		Responsible: req.Responsible,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "item updated", item)
}

// Delete discards an item: stock is zeroed through a discard movement
// and the record kept
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.items.DiscardItem(r.Context(), id, actorName(r), actorID(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "item discarded", result)
}

// actorID returns the authenticated user's ID, nil when anonymous
func actorID(r *http.Request) *string {
	if id := httputil.GetUserID(r.Context()); id != "" {
		return &id
	}
	return nil
}

// actorName returns the authenticated user's email for responsible
// attribution
func actorName(r *http.Request) string {
	return httputil.GetUserEmail(r.Context())
}
