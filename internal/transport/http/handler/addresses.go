package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phone-otp-gate/internal/application/address"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// VerificationTokenHeader carries a bridge token from a stateless client.
const VerificationTokenHeader = "X-Phone-Verification-Token"

// AddressHandler handles customer address book writes.
type AddressHandler struct {
	svc address.Service
}

func NewAddressHandler(svc address.Service) *AddressHandler { return &AddressHandler{svc: svc} }

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0, http.StatusCreated)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid address id")
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *AddressHandler) save(w http.ResponseWriter, r *http.Request, addressID int64, status int) {
	var body domain.SaveAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	addr, err := h.svc.Save(r.Context(), address.SaveRequest{
		Auth:        middleware.RequestAuth(r),
		AddressID:   addressID,
		Address:     body,
		BridgeToken: r.Header.Get(VerificationTokenHeader),
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, status, addr)
}
