package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	"github.com/phone-otp-gate/internal/pkg/phone"
	"github.com/phone-otp-gate/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// CustomerCreator persists a new customer and assigns its id.
type CustomerCreator interface {
	Create(ctx context.Context, c *domain.Customer) error
}

// TokenSigner issues a customer bearer token after sign-up.
type TokenSigner interface {
	Sign(customerID int64) (string, error)
}

type Result struct {
	Customer *domain.Customer
	Token    string
}

// Service gates account creation on a phone verified earlier in the same
// session or, for stateless clients, within the verified-phone cache window.
type Service interface {
	// RecordVerifiedPhone remembers a phone a guest just verified by OTP.
	RecordVerifiedPhone(ctx context.Context, sessionID, phone string) error
	CreateAccount(ctx context.Context, sessionID string, req domain.CreateCustomerRequest) (*Result, error)
}

type ServiceDeps struct {
	Customers CustomerCreator
	Markers   *session.Markers
	Cache     domain.KeyValueStore
	Signer    TokenSigner
	// Required is true when verification is enabled for registration and not optional.
	Required    bool
	CacheTTL    time.Duration
	PhoneLocale string
	Now         func() time.Time
}

type service struct {
	customers CustomerCreator
	markers   *session.Markers
	cache     domain.KeyValueStore
	signer    TokenSigner
	required  bool
	cacheTTL  time.Duration
	locale    string
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		customers: deps.Customers,
		markers:   deps.Markers,
		cache:     deps.Cache,
		signer:    deps.Signer,
		required:  deps.Required,
		cacheTTL:  deps.CacheTTL,
		locale:    deps.PhoneLocale,
		now:       deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 600 * time.Second
	}
	return s
}

type verifiedPhone struct {
	Phone     string `json:"phone"`
	Verified  bool   `json:"verified"`
	Timestamp int64  `json:"timestamp"`
}

func cacheKey(canonical string) string { return "verified_phone:" + phone.Hash(canonical) }

// proofKey is the single cache key holding the proof for p. Every spelling of
// the same number maps to it, so a proof can only be taken once.
func (s *service) proofKey(p string) string {
	c := phone.Canonical(strings.TrimSpace(p), s.locale)
	if c == "" {
		return ""
	}
	return cacheKey(c)
}

// RecordVerifiedPhone stores the proof under one key and points the session
// at the phone. The session marker alone never proves anything.
func (s *service) RecordVerifiedPhone(ctx context.Context, sessionID, p string) error {
	key := s.proofKey(p)
	if key == "" {
		return fmt.Errorf("phone number is required: %w", domain.ErrBadRequest)
	}
	b, err := json.Marshal(verifiedPhone{Phone: p, Verified: true, Timestamp: s.now().Unix()})
	if err != nil {
		return err
	}
	if err := s.cache.Save(ctx, key, b, s.cacheTTL); err != nil {
		return fmt.Errorf("cache verified phone: %w", err)
	}
	if sessionID == "" {
		return nil
	}
	return s.markers.Set(ctx, sessionID, session.RegistrationVerifiedPhone, p)
}

// claim is the consumed proof, kept so it can be restored if account creation
// fails afterwards.
type claim struct {
	key   string
	value []byte
}

func (s *service) CreateAccount(ctx context.Context, sessionID string, req domain.CreateCustomerRequest) (res *Result, err error) {
	defer func() { metrics.GateDecisionsTotal.WithLabelValues("registration", metrics.Outcome(err)).Inc() }()

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}

	verified, phoneNumber, proof := s.claimVerification(ctx, sessionID, req.PhoneNumber)
	if !verified && s.required {
		s.restore(ctx, proof)
		return nil, fmt.Errorf("phone number must be verified before registration: %w", domain.ErrVerificationRequired)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.restore(ctx, proof)
		return nil, err
	}
	now := s.now().UTC()
	c := &domain.Customer{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PasswordHash:  string(hash),
		PhoneNumber:   phoneNumber,
		PhoneVerified: verified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		s.restore(ctx, proof)
		return nil, err
	}
	if verified {
		s.clearMarker(ctx, sessionID)
	}

	res = &Result{Customer: c}
	if s.signer != nil {
		tok, err := s.signer.Sign(c.CustomerID)
		if err != nil {
			slog.Warn("account created but token signing failed", "customer_id", c.CustomerID, "err", err)
		} else {
			res.Token = tok
		}
	}
	return res, nil
}

// claimVerification takes the proof for the requested phone or, when none is
// given, for the phone the session verified. The proof key is removed with an
// atomic Take, so of two concurrent requests only one can win it.
func (s *service) claimVerification(ctx context.Context, sessionID, requested string) (bool, string, *claim) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		v, ok := s.markers.Get(ctx, sessionID, session.RegistrationVerifiedPhone)
		if !ok {
			return false, "", nil
		}
		requested = v
	}

	key := s.proofKey(requested)
	if key == "" {
		return false, requested, nil
	}
	b, err := s.cache.Take(ctx, key)
	if err != nil {
		return false, requested, nil
	}
	var vp verifiedPhone
	if json.Unmarshal(b, &vp) != nil || !vp.Verified {
		return false, requested, nil
	}
	if s.now().Sub(time.Unix(vp.Timestamp, 0)) >= s.cacheTTL {
		return false, requested, nil
	}
	return true, requested, &claim{key: key, value: b}
}

func (s *service) restore(ctx context.Context, c *claim) {
	if c == nil {
		return
	}
	if err := s.cache.Save(ctx, c.key, c.value, s.cacheTTL); err != nil {
		slog.Warn("failed to restore registration verification", "err", err)
	}
}

// clearMarker drops the session pointer once its proof is spent.
func (s *service) clearMarker(ctx context.Context, sessionID string) {
	if sessionID != "" {
		s.markers.Clear(ctx, sessionID, session.RegistrationVerifiedPhone)
	}
}
