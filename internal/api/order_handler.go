package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orderflow/orderflow/internal/api/shared"
	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/logger"
	"github.com/orderflow/orderflow/internal/service"
)

// OrderHandler handles order, notification, status, invoice and stock requests.
// It only enqueues and reads back; no pipeline work runs in a request.
type OrderHandler struct {
	orderService service.OrderService
	logger       *slog.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger.With("component", "order_handler"),
	}
}

func (h *OrderHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}

// decodeAndValidate writes a 400 and returns false when the body is unusable.
func (h *OrderHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// SubmitOrder handles POST /api/orders requests
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.orderService.SubmitOrder(r.Context(), domain.Order{
		ID:       req.OrderID,
		Product:  req.Product,
		Quantity: req.Quantity,
		Email:    req.Email,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit order")
		return
	}

	h.log(r).Info("order accepted", "order_id", req.OrderID, "task_id", id)
	// Processing happens asynchronously
	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskAcceptedResponse{TaskID: id.String()})
}

// SubmitNotification handles POST /api/notifications requests
func (h *OrderHandler) SubmitNotification(w http.ResponseWriter, r *http.Request) {
	var req SubmitNotificationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.orderService.SubmitNotification(r.Context(), service.NotificationRequest{
		Email:   req.Email,
		Message: req.Message,
		Subject: req.Subject,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit notification")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TaskAcceptedResponse{TaskID: id.String()})
}

// GetTaskStatus handles GET /api/status/{task_id} requests
func (h *OrderHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task ID", err)
		return
	}

	res, err := h.orderService.GetTaskResult(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read task status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskStatusResponse{
		TaskID:   res.TaskID.String(),
		Task:     res.Task,
		Status:   string(res.Status),
		Result:   res.Result,
		Error:    res.Error,
		Attempt:  res.Attempt,
		DateDone: res.DateDone,
	})
}

// GetOrderStatus handles GET /api/orders/{order_id} requests
func (h *OrderHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	status, err := h.orderService.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read order status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, OrderStatusResponse{OrderID: orderID, Status: string(status)})
}

// GetInvoice handles GET /api/invoice/{order_id} requests by serving the
// stored document as is.
func (h *OrderHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	inv, err := h.orderService.GetInvoice(r.Context(), orderID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read invoice")
		return
	}

	w.Header().Set("Content-Type", inv.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(inv.Bytes)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"invoice_%d.pdf\"", orderID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(inv.Bytes); err != nil {
		h.log(r).Error("failed to write invoice", "error", err, "order_id", orderID)
	}
}

// GetStock handles GET /api/stock/{product} requests
func (h *OrderHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	quantity, err := h.orderService.GetStock(r.Context(), product)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read stock")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StockResponse{Product: product, Quantity: quantity})
}

// SetStock handles PUT /api/stock/{product} requests
func (h *OrderHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	var req SetStockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.orderService.SetStock(r.Context(), product, *req.Quantity); err != nil {
		HandleAPIError(w, r, err, "Failed to update stock")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StockResponse{Product: product, Quantity: *req.Quantity})
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid order ID", err)
		return 0, false
	}
	return orderID, true
}
