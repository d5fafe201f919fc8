package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gantry-erp/gantry/internal/platform/httpx"
	"github.com/gantry-erp/gantry/internal/reconcile"
	"github.com/gantry-erp/gantry/internal/shared"
)

// Handler wires HTTP endpoints for the procurement write path.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleListOrders)
	r.Post("/orders", h.handleCreateOrder)
	r.Post("/orders/{orderID}/approve", h.handleApproveOrder)
	r.Post("/receipt-notes", h.handleCreateReceiptNote)
	r.Post("/receipt-notes/{noteID}/status", h.handleReceiptNoteStatus)
	r.Delete("/receipt-notes/{noteID}", h.handleDeleteReceiptNote)
	r.Post("/return-notes", h.handleCreateReturnNote)
	r.Post("/return-notes/{noteID}/status", h.handleReturnNoteStatus)
	r.Delete("/return-notes/{noteID}", h.handleDeleteReturnNote)
}

type orderLinePayload struct {
	CatalogItemID int64           `json:"catalog_item_id"`
	DisplayName   string          `json:"display_name"`
	OrderedQty    decimal.Decimal `json:"ordered_qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	CostCodeID    int64           `json:"cost_code_id"`
}

type createOrderPayload struct {
	ProjectID int64              `json:"project_id"`
	Kind      string             `json:"kind"`
	VendorID  int64              `json:"vendor_id"`
	OrderDate time.Time          `json:"order_date"`
	Note      string             `json:"note"`
	Lines     []orderLinePayload `json:"lines"`
}

type orderResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Number    string `json:"number"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := CreateOrderInput{
		ProjectID: payload.ProjectID,
		Kind:      reconcile.OrderKind(payload.Kind),
		VendorID:  payload.VendorID,
		OrderDate: payload.OrderDate,
		Note:      payload.Note,
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, OrderLineInput(line))
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderResponse{
		ID:        order.ID,
		ProjectID: order.ProjectID,
		Number:    order.Number,
		Kind:      string(order.Kind),
		Status:    string(order.Status),
	})
}

func (h *Handler) handleApproveOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order id must be numeric")
		return
	}
	if err := h.service.ApproveOrder(r.Context(), orderID); err != nil {
		h.respondError(w, "approve order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listOrdersResponse struct {
	Orders     []orderResponse   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, _ := strconv.ParseInt(q.Get("project_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	orders, pagination, err := h.service.ListOrders(r.Context(), projectID, page, perPage)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders)), Pagination: pagination}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, orderResponse{
			ID:        order.ID,
			ProjectID: order.ProjectID,
			Number:    order.Number,
			Kind:      string(order.Kind),
			Status:    string(order.Status),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type receiptItemPayload struct {
	OrderLineID int64           `json:"order_line_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type createReceiptNotePayload struct {
	OrderID    int64                `json:"order_id"`
	Status     string               `json:"status"`
	ReceivedAt time.Time            `json:"received_at"`
	Note       string               `json:"note"`
	Items      []receiptItemPayload `json:"items"`
}

type notePayloadResponse struct {
	ID      int64  `json:"id"`
	OrderID int64  `json:"order_id"`
	Number  string `json:"number"`
	Status  string `json:"status"`
}

func (h *Handler) handleCreateReceiptNote(w http.ResponseWriter, r *http.Request) {
	var payload createReceiptNotePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := CreateReceiptNoteInput{
		OrderID:    payload.OrderID,
		Status:     ReceiptStatus(payload.Status),
		ReceivedAt: payload.ReceivedAt,
		Note:       payload.Note,
	}
	for _, item := range payload.Items {
		input.Items = append(input.Items, ReceiptItemInput(item))
	}
	note, err := h.service.CreateReceiptNote(r.Context(), input)
	if err != nil {
		h.respondError(w, "create receipt note", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, notePayloadResponse{ID: note.ID, OrderID: note.OrderID, Number: note.Number, Status: string(note.Status)})
}

type noteStatusPayload struct {
	Status string `json:"status"`
}

func (h *Handler) handleReceiptNoteStatus(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "note id must be numeric")
		return
	}
	var payload noteStatusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.service.UpdateReceiptNoteStatus(r.Context(), noteID, ReceiptStatus(payload.Status)); err != nil {
		h.respondError(w, "update receipt note status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteReceiptNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "note id must be numeric")
		return
	}
	if err := h.service.SoftDeleteReceiptNote(r.Context(), noteID); err != nil {
		h.respondError(w, "delete receipt note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type returnItemPayload struct {
	OrderLineID int64           `json:"order_line_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type createReturnNotePayload struct {
	OrderID    int64               `json:"order_id"`
	Status     string              `json:"status"`
	ReturnedAt time.Time           `json:"returned_at"`
	Note       string              `json:"note"`
	Items      []returnItemPayload `json:"items"`
}

func (h *Handler) handleCreateReturnNote(w http.ResponseWriter, r *http.Request) {
	var payload createReturnNotePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input := CreateReturnNoteInput{
		OrderID:    payload.OrderID,
		Status:     ReturnStatus(payload.Status),
		ReturnedAt: payload.ReturnedAt,
		Note:       payload.Note,
	}
	for _, item := range payload.Items {
		input.Items = append(input.Items, ReturnItemInput(item))
	}
	note, err := h.service.CreateReturnNote(r.Context(), input)
	if err != nil {
		h.respondError(w, "create return note", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, notePayloadResponse{ID: note.ID, OrderID: note.OrderID, Number: note.Number, Status: string(note.Status)})
}

func (h *Handler) handleReturnNoteStatus(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "note id must be numeric")
		return
	}
	var payload noteStatusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.service.UpdateReturnNoteStatus(r.Context(), noteID, ReturnStatus(payload.Status)); err != nil {
		h.respondError(w, "update return note status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteReturnNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "note id must be numeric")
		return
	}
	if err := h.service.SoftDeleteReturnNote(r.Context(), noteID); err != nil {
		h.respondError(w, "delete return note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
