package handler

import (
	"net/http"

	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// AlertHandler handles alert classification endpoints
type AlertHandler struct {
	alerts *service.AlertService
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// Get classifies the active item set into expiry and stock alerts
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.alerts.GetAlerts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", report)
}
