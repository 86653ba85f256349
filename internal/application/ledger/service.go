package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// minSkipDigits guards the per-phone rules against short or partial numbers.
const minSkipDigits = 10

// AddressRepository reads saved customer addresses.
type AddressRepository interface {
	Get(ctx context.Context, addressID int64) (*domain.Address, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Address, error)
}

// VerificationStore is the durable per-address verification record store.
type VerificationStore interface {
	Upsert(ctx context.Context, v *domain.AddressPhoneVerification) error
	Get(ctx context.Context, addressID int64) (*domain.AddressPhoneVerification, error)
}

// ProfilePhones answers whether a phone is the customer's own verified phone.
type ProfilePhones interface {
	VerifiedPhoneMatches(ctx context.Context, customerID int64, phone string) (bool, error)
}

// TokenValidator checks a bridge token against a customer and phone.
type TokenValidator interface {
	Validate(ctx context.Context, token string, customerID int64, phone string) bool
}

type Reason string

const (
	ReasonDisabled           Reason = "disabled"
	ReasonEmptyPhone         Reason = "empty_phone"
	ReasonProfilePhone       Reason = "profile_phone"
	ReasonBridgeToken        Reason = "bridge_token"
	ReasonAddressVerified    Reason = "address_verified"
	ReasonSamePhoneVerified  Reason = "same_phone_verified"
	ReasonExistingUnverified Reason = "existing_unverified"
	ReasonNewAddress         Reason = "new_address"
)

// Query describes one write boundary. AddressID is zero for a new address.
type Query struct {
	Phone       string
	CustomerID  int64
	AddressID   int64
	BridgeToken string
	ClientIP    string
}

// Decision is the outcome of IsVerificationRequired together with the rule
// that produced it.
type Decision struct {
	Required bool
	Reason   Reason
}

type Service interface {
	Decide(ctx context.Context, q Query) Decision
	IsVerificationRequired(ctx context.Context, q Query) bool
	IsAddressVerified(ctx context.Context, addressID int64) bool
	// HasVerifiedAddressWithPhone applies the per-phone skip rule on its own.
	HasVerifiedAddressWithPhone(ctx context.Context, customerID int64, phone string) bool
	// SaveVerifiedAddressPhone upserts a verified record for addressID. It
	// never fails the caller: errors are logged and reported as false.
	SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, addressID int64, phone string) bool
	// MarkVerifiedAddressesByPhone marks every saved address of the customer
	// whose telephone matches phone and returns how many were written.
	MarkVerifiedAddressesByPhone(ctx context.Context, customerID int64, phone, clientIP string) int
}

type ServiceDeps struct {
	Addresses                 AddressRepository
	Verifications             VerificationStore
	Profiles                  ProfilePhones
	Tokens                    TokenValidator
	Enabled                   bool
	RequireUnverifiedExisting bool
	PerPhoneSkip              bool
	Now                       func() time.Time
}

type service struct {
	addresses                 AddressRepository
	verifications             VerificationStore
	profiles                  ProfilePhones
	tokens                    TokenValidator
	enabled                   bool
	requireUnverifiedExisting bool
	perPhoneSkip              bool
	now                       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		addresses:                 deps.Addresses,
		verifications:             deps.Verifications,
		profiles:                  deps.Profiles,
		tokens:                    deps.Tokens,
		enabled:                   deps.Enabled,
		requireUnverifiedExisting: deps.RequireUnverifiedExisting,
		perPhoneSkip:              deps.PerPhoneSkip,
		now:                       deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) IsVerificationRequired(ctx context.Context, q Query) bool {
	return s.Decide(ctx, q).Required
}

// Decide walks the rules in order; the first rule that establishes the phone
// as verified short-circuits to "not required".
func (s *service) Decide(ctx context.Context, q Query) Decision {
	d := s.decide(ctx, q)
	outcome := "required"
	if !d.Required {
		outcome = "not_required"
	}
	metrics.GateDecisionsTotal.WithLabelValues("ledger", string(d.Reason)+"_"+outcome).Inc()
	return d
}

func (s *service) decide(ctx context.Context, q Query) Decision {
	if !s.enabled {
		return Decision{Reason: ReasonDisabled}
	}
	if phone.Digits(q.Phone) == "" {
		return Decision{Reason: ReasonEmptyPhone}
	}

	if s.profileMatches(ctx, q.CustomerID, q.Phone) {
		s.heal(ctx, q)
		return Decision{Reason: ReasonProfilePhone}
	}

	if q.BridgeToken != "" && s.tokens != nil && s.tokens.Validate(ctx, q.BridgeToken, q.CustomerID, q.Phone) {
		return Decision{Reason: ReasonBridgeToken}
	}

	if q.AddressID > 0 && s.IsAddressVerified(ctx, q.AddressID) {
		return Decision{Reason: ReasonAddressVerified}
	}

	if s.perPhoneSkip && s.HasVerifiedAddressWithPhone(ctx, q.CustomerID, q.Phone) {
		s.heal(ctx, q)
		return Decision{Reason: ReasonSamePhoneVerified}
	}

	if q.AddressID > 0 {
		return Decision{Required: s.requireUnverifiedExisting, Reason: ReasonExistingUnverified}
	}
	return Decision{Required: true, Reason: ReasonNewAddress}
}

func (s *service) profileMatches(ctx context.Context, customerID int64, p string) bool {
	if customerID <= 0 || s.profiles == nil {
		return false
	}
	ok, err := s.profiles.VerifiedPhoneMatches(ctx, customerID, p)
	if err != nil {
		slog.Warn("profile phone lookup failed", "customer_id", customerID, "err", err)
		return false
	}
	return ok
}

// heal records an address as verified after an indirect rule matched, so the
// next lookup is answered by the address's own record.
func (s *service) heal(ctx context.Context, q Query) {
	if q.AddressID <= 0 {
		return
	}
	auth := domain.AuthContext{CustomerID: q.CustomerID, ClientIP: q.ClientIP}
	s.SaveVerifiedAddressPhone(ctx, auth, q.AddressID, q.Phone)
}

func (s *service) IsAddressVerified(ctx context.Context, addressID int64) bool {
	if addressID <= 0 {
		return false
	}
	v, err := s.verifications.Get(ctx, addressID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("address verification lookup failed", "address_id", addressID, "err", err)
		}
		return false
	}
	return v.IsVerified
}

func (s *service) HasVerifiedAddressWithPhone(ctx context.Context, customerID int64, p string) bool {
	addrs := s.addressesWithPhone(ctx, customerID, p)
	for _, a := range addrs {
		if s.IsAddressVerified(ctx, a.AddressID) {
			return true
		}
	}
	return false
}

func (s *service) addressesWithPhone(ctx context.Context, customerID int64, p string) []domain.Address {
	normalized := phone.Digits(p)
	if customerID <= 0 || len(normalized) < minSkipDigits {
		return nil
	}
	all, err := s.addresses.ListByCustomer(ctx, customerID)
	if err != nil {
		slog.Warn("list customer addresses failed", "customer_id", customerID, "err", err)
		return nil
	}
	var out []domain.Address
	for _, a := range all {
		if phone.Digits(a.Telephone) == normalized {
			out = append(out, a)
		}
	}
	return out
}

func (s *service) SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, addressID int64, p string) bool {
	if addressID <= 0 {
		return false
	}
	addr, err := s.addresses.Get(ctx, addressID)
	if err != nil {
		slog.Error("save address verification: address lookup failed", "address_id", addressID, "err", err)
		return false
	}
	if auth.LoggedIn() && addr.CustomerID != auth.CustomerID {
		slog.Error("save address verification: customer does not own address",
			"customer_id", auth.CustomerID, "address_customer_id", addr.CustomerID, "address_id", addressID)
		return false
	}
	return s.upsert(ctx, addressID, auth.ClientIP)
}

func (s *service) MarkVerifiedAddressesByPhone(ctx context.Context, customerID int64, p, clientIP string) int {
	n := 0
	for _, a := range s.addressesWithPhone(ctx, customerID, p) {
		if s.upsert(ctx, a.AddressID, clientIP) {
			n++
		}
	}
	return n
}

func (s *service) upsert(ctx context.Context, addressID int64, clientIP string) bool {
	err := s.verifications.Upsert(ctx, &domain.AddressPhoneVerification{
		AddressID:  addressID,
		IsVerified: true,
		VerifiedAt: s.now().UTC(),
		VerifiedIP: clientIP,
	})
	if err != nil {
		slog.Error("address verification upsert failed", "address_id", addressID, "err", err)
		return false
	}
	return true
}
