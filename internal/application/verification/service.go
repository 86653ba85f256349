// Package verification drives the OTP send/verify flows for every entry
// point (REST, GraphQL) and routes a successful verification to the right
// place: the customer profile, the registration gate or address markers.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phone-otp-gate/internal/application/otp"
	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// Flow is the client-declared reason for an OTP.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowAccount      Flow = "account"
	FlowAddress      Flow = "address"
	FlowCheckout     Flow = "checkout"
)

// ParseFlow accepts an empty value as the account/registration default.
func ParseFlow(s string) (Flow, error) {
	switch f := Flow(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FlowAccount, nil
	case FlowRegistration, FlowAccount, FlowAddress, FlowCheckout:
		return f, nil
	default:
		return "", fmt.Errorf("unknown verification context %q: %w", s, domain.ErrBadRequest)
	}
}

func (f Flow) addressScoped() bool { return f == FlowAddress || f == FlowCheckout }

type Customers interface {
	IsPhoneAvailable(ctx context.Context, customerID int64, phone string) (bool, error)
	SaveVerifiedPhone(ctx context.Context, customerID int64, phone string) error
	VerifiedPhoneMatches(ctx context.Context, customerID int64, phone string) (bool, error)
}

type Ledger interface {
	HasVerifiedAddressWithPhone(ctx context.Context, customerID int64, phone string) bool
	SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, addressID int64, phone string) bool
}

type TokenIssuer interface {
	Issue(ctx context.Context, customerID int64, phone string) (*domain.IssuedToken, error)
}

type Registration interface {
	RecordVerifiedPhone(ctx context.Context, sessionID, phone string) error
}

type SendInput struct {
	Auth  domain.AuthContext
	Phone string
	Flow  Flow
	// Normalize applies locale canonicalization before sending; GraphQL
	// clients rely on it.
	Normalize bool
}

type VerifyInput struct {
	Auth              domain.AuthContext
	Code              string
	Phone             string
	Flow              Flow
	AddressType       string
	CustomerAddressID int64
}

type VerifyResult struct {
	Message         string
	Phone           string
	PhoneVerified   bool
	CustomerUpdated bool
	Token           *domain.IssuedToken
}

type Service interface {
	SendOtp(ctx context.Context, in SendInput) error
	VerifyOtp(ctx context.Context, in VerifyInput) (*VerifyResult, error)
	// VerifyAddressOtp verifies a code for a logged-in customer and returns a
	// bridge token for later stateless checkout calls.
	VerifyAddressOtp(ctx context.Context, auth domain.AuthContext, code, phoneHint string) (*domain.IssuedToken, error)
	OtpStatus(ctx context.Context, auth domain.AuthContext) domain.OtpStatus
	IsPhoneVerified(ctx context.Context, auth domain.AuthContext, phone string) (bool, error)
	ValidatePhone(ctx context.Context, auth domain.AuthContext, phone string) (bool, error)
}

type ServiceDeps struct {
	OTP          otp.Service
	Customers    Customers
	Ledger       Ledger
	Tokens       TokenIssuer
	Registration Registration
	Markers      *session.Markers
	PhoneLocale  string
}

type service struct {
	otp          otp.Service
	customers    Customers
	ledger       Ledger
	tokens       TokenIssuer
	registration Registration
	markers      *session.Markers
	locale       string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otp:          deps.OTP,
		customers:    deps.Customers,
		ledger:       deps.Ledger,
		tokens:       deps.Tokens,
		registration: deps.Registration,
		markers:      deps.Markers,
		locale:       deps.PhoneLocale,
	}
}

func (s *service) SendOtp(ctx context.Context, in SendInput) error {
	p := strings.TrimSpace(in.Phone)
	if p == "" {
		return fmt.Errorf("please enter phone number: %w", domain.ErrBadRequest)
	}
	if in.Normalize {
		p = phone.Canonical(p, s.locale)
	}
	_, err := s.otp.Send(ctx, otp.SendRequest{
		Auth:                  in.Auth,
		Phone:                 p,
		SkipAvailabilityCheck: in.Flow.addressScoped(),
	})
	return err
}

func (s *service) VerifyOtp(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	rec, err := s.otp.Verify(ctx, in.Auth.SessionID, in.Code, in.Phone)
	if err != nil {
		return nil, err
	}
	if !s.issuedFor(rec, in.Phone) {
		return nil, domain.ErrOtpMismatch
	}
	res := &VerifyResult{Phone: rec.Phone, PhoneVerified: true}

	switch {
	case in.Flow.addressScoped() || in.AddressType != "" || in.CustomerAddressID > 0:
		s.markAddress(ctx, in, rec.Phone)
		if in.Auth.LoggedIn() {
			tok, err := s.tokens.Issue(ctx, in.Auth.CustomerID, rec.Phone)
			if err != nil {
				slog.Warn("bridge token issue failed", "customer_id", in.Auth.CustomerID, "err", err)
			}
			res.Token = tok
		}
		res.Message = "Phone number verified successfully."

	case in.Auth.LoggedIn():
		if err := s.customers.SaveVerifiedPhone(ctx, in.Auth.CustomerID, rec.Phone); err != nil {
			slog.Error("saving verified phone failed", "customer_id", in.Auth.CustomerID, "err", err)
			// the record stays so the client can retry with the same code
			return res, fmt.Errorf("phone number verified but could not be saved: %w", domain.ErrPersistenceFailure)
		}
		res.CustomerUpdated = true
		res.Message = "Phone number verified and saved successfully."

	default:
		if err := s.registration.RecordVerifiedPhone(ctx, in.Auth.SessionID, rec.Phone); err != nil {
			return res, fmt.Errorf("phone number verified but could not be saved: %w", domain.ErrPersistenceFailure)
		}
		res.Message = "Phone number verified successfully. You can now complete your registration."
	}

	s.otp.Consume(ctx, in.Auth.SessionID, rec)
	return res, nil
}

// issuedFor reports whether rec was sent to the phone the caller named. A code
// found through the code mirror may belong to another phone; it is left
// unconsumed for its owner.
func (s *service) issuedFor(rec *domain.OtpRecord, named string) bool {
	named = strings.TrimSpace(named)
	if named == "" {
		return true
	}
	return phone.Equal(rec.Phone, named) || phone.Canonical(rec.Phone, s.locale) == phone.Canonical(named, s.locale)
}

// markAddress records address-scoped proof in the session so a later address
// or checkout save can find it without a token.
func (s *service) markAddress(ctx context.Context, in VerifyInput, p string) {
	spellings := []string{p}
	if d := phone.Digits(p); d != p {
		spellings = append(spellings, d)
	}
	types := []string{"shipping", "billing"}
	if t := strings.ToLower(strings.TrimSpace(in.AddressType)); t == "shipping" || t == "billing" {
		types = []string{t}
	}

	var names []string
	for _, sp := range spellings {
		names = append(names, session.NewAddressMarker(sp))
		for _, t := range types {
			names = append(names, session.CheckoutMarker(t, sp))
		}
	}
	if in.CustomerAddressID > 0 {
		names = append(names, session.AddressMarker(in.CustomerAddressID))
		s.ledger.SaveVerifiedAddressPhone(ctx, in.Auth, in.CustomerAddressID, p)
	}
	for _, n := range names {
		if err := s.markers.Set(ctx, in.Auth.SessionID, n, p); err != nil {
			slog.Warn("address marker not stored", "err", err)
		}
	}
}

func (s *service) VerifyAddressOtp(ctx context.Context, auth domain.AuthContext, code, phoneHint string) (*domain.IssuedToken, error) {
	if !auth.LoggedIn() {
		return nil, fmt.Errorf("customer authentication is required: %w", domain.ErrUnauthorized)
	}
	rec, err := s.otp.Verify(ctx, auth.SessionID, code, phoneHint)
	if err != nil {
		return nil, err
	}
	if !s.issuedFor(rec, phoneHint) {
		return nil, domain.ErrOtpMismatch
	}
	tok, err := s.tokens.Issue(ctx, auth.CustomerID, rec.Phone)
	if err != nil {
		return nil, err
	}
	s.otp.Consume(ctx, auth.SessionID, rec)
	return tok, nil
}

func (s *service) OtpStatus(ctx context.Context, auth domain.AuthContext) domain.OtpStatus {
	return s.otp.Status(ctx, auth.SessionID)
}

func (s *service) IsPhoneVerified(ctx context.Context, auth domain.AuthContext, p string) (bool, error) {
	if !auth.LoggedIn() || strings.TrimSpace(p) == "" {
		return false, nil
	}
	ok, err := s.customers.VerifiedPhoneMatches(ctx, auth.CustomerID, p)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return s.ledger.HasVerifiedAddressWithPhone(ctx, auth.CustomerID, p), nil
}

func (s *service) ValidatePhone(ctx context.Context, auth domain.AuthContext, p string) (bool, error) {
	if strings.TrimSpace(p) == "" {
		return false, fmt.Errorf("please enter phone number: %w", domain.ErrBadRequest)
	}
	return s.customers.IsPhoneAvailable(ctx, auth.CustomerID, p)
}
