package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phone-otp-gate/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ResultEnvelope is the {success, message} body every OTP and phone
// endpoint answers with, always with HTTP 200.
type ResultEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type VerifyEnvelope struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message"`
	PhoneVerified     bool    `json:"phone_verified"`
	CustomerUpdated   bool    `json:"customer_updated"`
	VerificationToken *string `json:"verification_token,omitempty"`
	ExpiresIn         *int    `json:"expires_in,omitempty"`
}

type VerifiedEnvelope struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

type CustomerEnvelope struct {
	Bearer   string           `json:"Bearer,omitempty"`
	Customer *domain.Customer `json:"customer,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeResult answers an OTP/phone call. Only authentication failures leave
// the 200 envelope.
func writeResult(w http.ResponseWriter, err error, okMessage string) {
	if err == nil {
		writeJSON(w, http.StatusOK, ResultEnvelope{Success: true, Message: okMessage})
		return
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, ResultEnvelope{Message: UserMessage(err)})
}

// httpError maps a domain error onto a status code for the resource endpoints.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrPhoneUnavailable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrVerificationRequired), errors.Is(err, domain.ErrAddressPhoneUnverified),
		errors.Is(err, domain.ErrTokenInvalid):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, UserMessage(err))
}

// UserMessage turns an error into text safe to show a client. Infrastructure
// details are logged and replaced with a generic message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrOtpNotFound), errors.Is(err, domain.ErrOtpExpired), errors.Is(err, domain.ErrOtpMismatch):
		return "Invalid OTP code or OTP has expired."
	case errors.Is(err, domain.ErrPhoneUnavailable):
		return "This phone number is already registered and verified by another user."
	case errors.Is(err, domain.ErrSendFailed):
		return "Unable to send OTP. Please try again later."
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "Phone number verified but could not be saved. Please try again."
	case errors.Is(err, domain.ErrVerificationRequired):
		return "Phone number verification is required."
	case errors.Is(err, domain.ErrAddressPhoneUnverified):
		return sentence(strings.TrimSuffix(err.Error(), ": "+domain.ErrAddressPhoneUnverified.Error()))
	case errors.Is(err, domain.ErrTokenInvalid):
		return "Phone verification token is invalid or has expired."
	case errors.Is(err, domain.ErrUnauthorized):
		return "Customer authentication is required."
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to modify this resource."
	case errors.Is(err, domain.ErrNotFound):
		return "The requested resource was not found."
	case errors.Is(err, domain.ErrConflict):
		return "An account with this email already exists."
	case errors.Is(err, domain.ErrBadRequest):
		return sentence(strings.TrimSuffix(err.Error(), ": "+domain.ErrBadRequest.Error()))
	default:
		slog.Error("unhandled request error", "err", err)
		return "Something went wrong. Please try again."
	}
}

// sentence capitalizes the first letter and terminates with a period.
func sentence(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
