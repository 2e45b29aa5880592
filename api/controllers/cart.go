package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/api/middleware"
	"github.com/minhdang/storefront-backend/api/responses"
	"github.com/minhdang/storefront-backend/api/validators"
	cartsvc "github.com/minhdang/storefront-backend/internal/cart"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

// ownerFromRequest resolves the cart owner from the gateway identity
// headers. Authenticated users win over a lingering guest session.
func ownerFromRequest(r *http.Request) (cartsvc.Owner, error) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeValidation, "identity headers missing")
	}
	if identity.HasUser() {
		return cartsvc.ForUser(*identity.UserID), nil
	}
	if identity.SessionID != "" {
		return cartsvc.ForGuest(identity.SessionID), nil
	}
	return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeValidation, "identity headers missing")
}

type cartItemResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity"`
	Selected  bool       `json:"selected"`
	UnitPrice int64      `json:"unit_price"`
	LineTotal int64      `json:"line_total"`
}

type cartResponse struct {
	ID            uuid.UUID          `json:"id"`
	Items         []cartItemResponse `json:"items"`
	SelectedTotal int64              `json:"selected_total"`
}

func newCartResponse(cartID uuid.UUID, priced []cartsvc.PricedItem, selectedTotal int64) cartResponse {
	items := make([]cartItemResponse, len(priced))
	for i, line := range priced {
		items[i] = cartItemResponse{
			ID:        line.Item.ID,
			ProductID: line.Item.ProductID,
			VariantID: line.Item.VariantID,
			Quantity:  line.Item.Quantity,
			Selected:  line.Item.Selected,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		}
	}
	return cartResponse{ID: cartID, Items: items, SelectedTotal: selectedTotal}
}

func writeCart(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger, owner cartsvc.Owner) {
	record, err := svc.GetOrCreate(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	priced, _, err := svc.PricedItems(r.Context(), owner, false)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	selectedTotal, err := svc.SelectedTotal(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, newCartResponse(record.ID, priced, selectedTotal))
}

// CartGet returns the caller's cart with live prices, creating an empty
// cart on first touch.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,min=1"`
}

// CartAddItem adds a product line or bumps the quantity of an existing one.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.AddItem(r.Context(), owner, payload.ProductID, payload.VariantID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartUpdateItem changes the quantity of one cart line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.UpdateQuantity(r.Context(), owner, itemID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

// CartRemoveItem deletes one cart line.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		if err := svc.RemoveItem(r.Context(), owner, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

type selectCartItemRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

// CartSelectItem marks one line as included in or excluded from checkout.
func CartSelectItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}
		var payload selectCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ToggleSelected(r.Context(), owner, itemID, *payload.Selected); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

// CartSelectAll flips the selected flag on every line at once.
func CartSelectAll(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload selectCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SelectAll(r.Context(), owner, *payload.Selected); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

// CartClear empties the cart. With ?selected=true only selected lines go,
// which is what checkout uses after assembling an order.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clearFn := svc.Clear
		if r.URL.Query().Get("selected") == "true" {
			clearFn = svc.ClearSelected
		}
		if err := clearFn(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, svc, logg, owner)
	}
}

// CartMerge folds the caller's guest cart into their user cart after login.
// The session id still arrives via header; the response lists any lines
// whose quantity was capped by available stock.
func CartMerge(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok || !identity.HasUser() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "authenticated user required"))
			return
		}
		if identity.SessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest session header required"))
			return
		}
		adjustments, err := svc.MergeGuestCart(r.Context(), identity.SessionID, *identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if adjustments == nil {
			adjustments = []cartsvc.MergeAdjustment{}
		}
		responses.WriteSuccess(w, map[string]any{"adjustments": adjustments})
	}
}
