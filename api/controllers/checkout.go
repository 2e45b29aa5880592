package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/api/middleware"
	"github.com/minhdang/storefront-backend/api/responses"
	"github.com/minhdang/storefront-backend/api/validators"
	checkoutsvc "github.com/minhdang/storefront-backend/internal/checkout"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type createOrderRequest struct {
	ItemIDs       []uuid.UUID `json:"item_ids"`
	VoucherCode   string      `json:"voucher_code"`
	PaymentMethod string      `json:"payment_method" validate:"required"`
	ReceiverName  string      `json:"receiver_name" validate:"required"`
	ReceiverPhone string      `json:"receiver_phone" validate:"required"`
	City          string      `json:"city" validate:"required"`
	District      string      `json:"district" validate:"required"`
	Ward          string      `json:"ward" validate:"required"`
	Address       string      `json:"address" validate:"required"`
	Note          *string     `json:"note"`
}

// CheckoutCreateOrder turns the caller's selected cart lines into a placed
// order. Empty item_ids means "everything currently selected".
func CheckoutCreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok || !identity.HasUser() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authenticated user required"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.CreateOrder(r.Context(), checkoutsvc.CreateOrderInput{
			UserID:        *identity.UserID,
			ItemIDs:       payload.ItemIDs,
			VoucherCode:   payload.VoucherCode,
			PaymentMethod: method,
			ReceiverName:  payload.ReceiverName,
			ReceiverPhone: payload.ReceiverPhone,
			City:          payload.City,
			District:      payload.District,
			Ward:          payload.Ward,
			Address:       payload.Address,
			Note:          payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
