package handler

import (
	"encoding/json"
	"net/http"

	"github.com/phone-otp-gate/internal/application/verification"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// OtpHandler handles the phone OTP send/verify/status endpoints.
type OtpHandler struct {
	svc verification.Service
}

func NewOtpHandler(svc verification.Service) *OtpHandler { return &OtpHandler{svc: svc} }

type sendOtpRequest struct {
	Phone   string `json:"phone"`
	Context string `json:"context"`
}

type verifyOtpRequest struct {
	OTP               string `json:"otp"`
	Phone             string `json:"phone"`
	Context           string `json:"context"`
	AddressType       string `json:"address_type"`
	CustomerAddressID int64  `json:"customer_address_id"`
}

func (h *OtpHandler) Send(w http.ResponseWriter, r *http.Request) {
	var body sendOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, ResultEnvelope{Message: "Invalid request body."})
		return
	}
	if body.Phone == "" {
		writeJSON(w, http.StatusOK, ResultEnvelope{Message: "Please enter phone number."})
		return
	}
	flow, err := verification.ParseFlow(body.Context)
	if err != nil {
		writeResult(w, err, "")
		return
	}
	err = h.svc.SendOtp(r.Context(), verification.SendInput{
		Auth:  middleware.RequestAuth(r),
		Phone: body.Phone,
		Flow:  flow,
	})
	writeResult(w, err, "OTP sent successfully to your phone number.")
}

func (h *OtpHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusOK, VerifyEnvelope{Message: "Invalid request body."})
		return
	}
	if body.OTP == "" {
		writeJSON(w, http.StatusOK, VerifyEnvelope{Message: "Please enter OTP code."})
		return
	}
	flow, err := verification.ParseFlow(body.Context)
	if err != nil {
		writeResult(w, err, "")
		return
	}
	res, err := h.svc.VerifyOtp(r.Context(), verification.VerifyInput{
		Auth:              middleware.RequestAuth(r),
		Code:              body.OTP,
		Phone:             body.Phone,
		Flow:              flow,
		AddressType:       body.AddressType,
		CustomerAddressID: body.CustomerAddressID,
	})
	writeJSON(w, http.StatusOK, toVerifyEnvelope(res, err))
}

func (h *OtpHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.OtpStatus(r.Context(), middleware.RequestAuth(r)))
}

func toVerifyEnvelope(res *verification.VerifyResult, err error) VerifyEnvelope {
	env := VerifyEnvelope{Success: err == nil}
	if res != nil {
		env.Message = res.Message
		env.PhoneVerified = res.PhoneVerified
		env.CustomerUpdated = res.CustomerUpdated
		if res.Token != nil {
			env.VerificationToken = &res.Token.Token
			env.ExpiresIn = &res.Token.ExpiresIn
		}
	}
	if err != nil {
		env.Message = UserMessage(err)
	}
	return env
}
