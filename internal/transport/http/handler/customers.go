package handler

import (
	"encoding/json"
	"net/http"

	"github.com/phone-otp-gate/internal/application/auth"
	"github.com/phone-otp-gate/internal/application/customer"
	"github.com/phone-otp-gate/internal/application/registration"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// CustomerHandler handles registration, login and profile reads.
type CustomerHandler struct {
	registration registration.Service
	customers    customer.Service
	auth         auth.Service
}

func NewCustomerHandler(reg registration.Service, customers customer.Service, authSvc auth.Service) *CustomerHandler {
	return &CustomerHandler{registration: reg, customers: customers, auth: authSvc}
}

func (h *CustomerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.registration.CreateAccount(r.Context(), middleware.SessionIDFromContext(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerEnvelope{Bearer: res.Token, Customer: res.Customer})
}

func (h *CustomerHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), middleware.RequestAuth(r).CustomerID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerEnvelope{Customer: c})
}

func (h *CustomerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bearer, c, err := h.auth.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerEnvelope{Bearer: bearer, Customer: c})
}
