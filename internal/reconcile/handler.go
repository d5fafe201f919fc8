package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gantry-erp/gantry/internal/platform/httpx"
)

// Handler wires the report and completion-check endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the reconcile HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the reconcile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{projectID}/stock-report", h.handleProjectReport)
	r.Get("/orders/{orderID}/report", h.handleOrderReport)
	r.Post("/orders/{orderID}/completion-check", h.handleCompletionCheck)
}

func (h *Handler) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project id must be numeric")
		return
	}
	report, err := h.service.GenerateProjectReport(r.Context(), projectID)
	if err != nil {
		h.respondError(w, "project stock report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleOrderReport(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order id must be numeric")
		return
	}
	report, err := h.service.GenerateOrderReport(r.Context(), orderID)
	if err != nil {
		h.respondError(w, "order report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type completionResponse struct {
	OrderID  int64 `json:"order_id"`
	Complete bool  `json:"complete"`
}

func (h *Handler) handleCompletionCheck(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order id must be numeric")
		return
	}
	complete, err := h.service.EvaluateCompletion(r.Context(), orderID)
	if err != nil {
		h.respondError(w, "completion check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, completionResponse{OrderID: orderID, Complete: complete})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
