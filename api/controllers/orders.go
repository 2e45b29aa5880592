package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/api/middleware"
	"github.com/minhdang/storefront-backend/api/responses"
	"github.com/minhdang/storefront-backend/api/validators"
	ordersvc "github.com/minhdang/storefront-backend/internal/orders"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type orderItemResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	VariantName *string    `json:"variant_name,omitempty"`
	UnitPrice   int64      `json:"unit_price"`
	Quantity    int        `json:"quantity"`
	LineTotal   int64      `json:"line_total"`
}

type orderHistoryResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderResponse struct {
	ID            uuid.UUID              `json:"id"`
	Code          string                 `json:"code"`
	Status        string                 `json:"status"`
	IsPaid        bool                   `json:"is_paid"`
	PaymentMethod string                 `json:"payment_method"`
	Subtotal      int64                  `json:"subtotal"`
	Discount      int64                  `json:"discount"`
	ShippingFee   int64                  `json:"shipping_fee"`
	Total         int64                  `json:"total"`
	ReceiverName  string                 `json:"receiver_name"`
	ReceiverPhone string                 `json:"receiver_phone"`
	City          string                 `json:"city"`
	District      string                 `json:"district"`
	Ward          string                 `json:"ward"`
	Address       string                 `json:"address"`
	Note          *string                `json:"note,omitempty"`
	Items         []orderItemResponse    `json:"items,omitempty"`
	History       []orderHistoryResponse `json:"history,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		Code:          order.Code,
		Status:        order.Status.String(),
		IsPaid:        order.IsPaid,
		PaymentMethod: order.PaymentMethod.String(),
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		ShippingFee:   order.ShippingFee,
		Total:         order.Total,
		ReceiverName:  order.ReceiverName,
		ReceiverPhone: order.ReceiverPhone,
		City:          order.City,
		District:      order.District,
		Ward:          order.Ward,
		Address:       order.Address,
		Note:          order.Note,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	for _, entry := range order.History {
		resp.History = append(resp.History, orderHistoryResponse{
			FromStatus: entry.FromStatus.String(),
			ToStatus:   entry.ToStatus.String(),
			Actor:      entry.Actor.String(),
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok || !identity.HasUser() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "authenticated user required")
	}
	return *identity.UserID, nil
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// loadOwnedOrder fetches the order and hides other users' orders behind a
// NOT_FOUND rather than confirming they exist.
func loadOwnedOrder(r *http.Request, svc ordersvc.Service, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := svc.Get(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// OrdersList returns the caller's orders, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		records, err := svc.ListByUser(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list := make([]orderResponse, len(records))
		for i := range records {
			list[i] = newOrderResponse(&records[i])
		}
		responses.WriteSuccess(w, map[string]any{"orders": list})
	}
}

// OrderDetail returns one order with items and the full status trail.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := loadOwnedOrder(r, svc, userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type orderReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// OrderCancel cancels a not-yet-shipping order, restocking its lines and
// voiding any voucher usage.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload orderReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadOwnedOrder(r, svc, userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), orderID, enums.ActorRoleCustomer, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderRequestReturn opens a return request on a delivered or completed
// order.
func OrderRequestReturn(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload orderReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadOwnedOrder(r, svc, userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.RequestReturn(r.Context(), orderID, enums.ActorRoleCustomer, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type adminTransitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

// AdminOrderTransition moves an order along its lifecycle on behalf of
// operations staff.
func AdminOrderTransition(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adminTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}
		order, err := svc.Transition(r.Context(), orderID, status, enums.ActorRoleAdmin, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type adminNoteRequest struct {
	Note *string `json:"note"`
}

// AdminOrderCancel cancels on behalf of operations staff.
func AdminOrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload orderReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), orderID, enums.ActorRoleAdmin, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderApproveReturn accepts a pending return request and restocks
// the returned lines.
func AdminOrderApproveReturn(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adminNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.ApproveReturn(r.Context(), orderID, enums.ActorRoleAdmin, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type paymentCallbackRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

// OrderPaymentCallback records a successful payment for an order. Repeat
// deliveries of the same transaction are absorbed silently.
func OrderPaymentCallback(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkPaid(r.Context(), orderID, payload.TransactionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "paid"})
	}
}
