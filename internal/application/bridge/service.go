package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	"github.com/phone-otp-gate/internal/pkg/phone"
	pkgtoken "github.com/phone-otp-gate/internal/pkg/token"
)

// Service issues and validates verification bridge tokens. Tokens are bound
// to a logged-in customer; guest bridging is not supported.
type Service interface {
	Issue(ctx context.Context, customerID int64, phone string) (*domain.IssuedToken, error)
	// Validate is non-consuming and fails closed on any error.
	Validate(ctx context.Context, token string, customerID int64, phone string) bool
}

type ServiceDeps struct {
	Store domain.KeyValueStore
	TTL   time.Duration
	Now   func() time.Time
}

type service struct {
	store domain.KeyValueStore
	ttl   time.Duration
	now   func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, ttl: deps.TTL, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl <= 0 {
		s.ttl = 300 * time.Second
	}
	return s
}

func storeKey(token string) string { return "bridge:" + token }

func (s *service) Issue(ctx context.Context, customerID int64, p string) (*domain.IssuedToken, error) {
	normalized := phone.Digits(p)
	if customerID <= 0 {
		metrics.BridgeTokensTotal.WithLabelValues("issue", "rejected").Inc()
		return nil, fmt.Errorf("customer authentication is required: %w", domain.ErrUnauthorized)
	}
	if normalized == "" {
		return nil, fmt.Errorf("phone number is required: %w", domain.ErrBadRequest)
	}
	tok, err := pkgtoken.NewBridgeToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	payload := domain.VerificationBridgeToken{
		CustomerID:      customerID,
		NormalizedPhone: normalized,
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.ttl),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal bridge token: %w", err)
	}
	if err := s.store.Save(ctx, storeKey(tok), b, s.ttl); err != nil {
		metrics.BridgeTokensTotal.WithLabelValues("issue", "failure").Inc()
		return nil, fmt.Errorf("store bridge token: %w", err)
	}
	metrics.BridgeTokensTotal.WithLabelValues("issue", "success").Inc()
	return &domain.IssuedToken{Token: tok, ExpiresIn: int(s.ttl.Seconds())}, nil
}

func (s *service) Validate(ctx context.Context, token string, customerID int64, p string) bool {
	ok := s.validate(ctx, token, customerID, p)
	result := "invalid"
	if ok {
		result = "valid"
	}
	metrics.BridgeTokensTotal.WithLabelValues("validate", result).Inc()
	return ok
}

func (s *service) validate(ctx context.Context, token string, customerID int64, p string) bool {
	token = strings.TrimSpace(token)
	normalized := phone.Digits(p)
	if token == "" || normalized == "" || customerID <= 0 {
		return false
	}
	b, err := s.store.Load(ctx, storeKey(token))
	if err != nil {
		return false
	}
	var payload domain.VerificationBridgeToken
	if err := json.Unmarshal(b, &payload); err != nil {
		slog.Warn("unparsable bridge token payload", "err", err)
		return false
	}
	if !s.now().Before(payload.ExpiresAt) {
		return false
	}
	return payload.CustomerID == customerID && payload.NormalizedPhone == normalized
}
