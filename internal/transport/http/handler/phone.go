package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phone-otp-gate/internal/application/verification"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// PhoneHandler answers phone availability and verification-state lookups.
type PhoneHandler struct {
	svc verification.Service
}

func NewPhoneHandler(svc verification.Service) *PhoneHandler { return &PhoneHandler{svc: svc} }

// IsVerified never fails: guests and lookup errors answer verified=false.
func (h *PhoneHandler) IsVerified(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.IsPhoneVerified(r.Context(), middleware.RequestAuth(r), r.URL.Query().Get("phone"))
	if err != nil {
		slog.Warn("phone verification lookup failed", "err", err)
		ok = false
	}
	writeJSON(w, http.StatusOK, VerifiedEnvelope{Success: true, Verified: ok})
}

func (h *PhoneHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, ResultEnvelope{Message: "Invalid request body."})
		return
	}
	available, err := h.svc.ValidatePhone(r.Context(), middleware.RequestAuth(r), body.Phone)
	if err != nil {
		writeResult(w, err, "")
		return
	}
	if !available {
		writeJSON(w, http.StatusOK, ResultEnvelope{
			Message: "This phone number is already registered and verified by another user.",
		})
		return
	}
	writeResult(w, nil, "Phone number is available.")
}
