package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phone-otp-gate/internal/application/checkout"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// CheckoutHandler handles the shipping-information step of checkout.
type CheckoutHandler struct {
	svc checkout.Service
}

func NewCheckoutHandler(svc checkout.Service) *CheckoutHandler { return &CheckoutHandler{svc: svc} }

func (h *CheckoutHandler) SaveShippingInformation(w http.ResponseWriter, r *http.Request) {
	var body domain.ShippingInformation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cart, err := h.svc.SaveAddressInformation(r.Context(), checkout.SaveRequest{
		Auth:        middleware.RequestAuth(r),
		CartID:      chi.URLParam(r, "cartId"),
		Info:        body,
		BridgeToken: r.Header.Get(VerificationTokenHeader),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
