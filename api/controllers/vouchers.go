package controllers

import (
	"net/http"
	"time"

	"github.com/minhdang/storefront-backend/api/middleware"
	"github.com/minhdang/storefront-backend/api/responses"
	"github.com/minhdang/storefront-backend/api/validators"
	vouchersvc "github.com/minhdang/storefront-backend/internal/voucher"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type voucherPreviewRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount int64  `json:"order_amount" validate:"required,min=1"`
}

type voucherPreviewResponse struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// VoucherPreview runs the full validation chain and prices the discount
// without reserving anything. The cart page calls this as the user types.
func VoucherPreview(svc *vouchersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok || !identity.HasUser() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authenticated user required"))
			return
		}

		var payload voucherPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, err := svc.Validate(r.Context(), payload.Code, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.CanUserUse(r.Context(), voucher, *identity.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := svc.CalculateDiscount(voucher, payload.OrderAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, voucherPreviewResponse{
			Code:     voucher.Code,
			Discount: discount,
			Total:    payload.OrderAmount - discount,
		})
	}
}
