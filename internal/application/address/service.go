package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/application/ledger"
	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	"github.com/phone-otp-gate/internal/pkg/phone"
	"github.com/phone-otp-gate/internal/pkg/validate"
)

type Repository interface {
	Get(ctx context.Context, addressID int64) (*domain.Address, error)
	Save(ctx context.Context, a *domain.Address) error
}

// Ledger is the part of the verification ledger the address gate consults.
type Ledger interface {
	Decide(ctx context.Context, q ledger.Query) ledger.Decision
	SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, addressID int64, phone string) bool
}

type SaveRequest struct {
	Auth domain.AuthContext
	// AddressID is zero when creating an address.
	AddressID   int64
	Address     domain.SaveAddressRequest
	BridgeToken string
}

// Service saves customer addresses, refusing a phone that needs verification
// and has no proof attached.
type Service interface {
	Save(ctx context.Context, req SaveRequest) (*domain.Address, error)
}

type ServiceDeps struct {
	Repo    Repository
	Ledger  Ledger
	Markers *session.Markers
	Now     func() time.Time
}

type service struct {
	repo    Repository
	ledger  Ledger
	markers *session.Markers
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.Repo, ledger: deps.Ledger, markers: deps.Markers, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Save(ctx context.Context, req SaveRequest) (addr *domain.Address, err error) {
	defer func() { metrics.GateDecisionsTotal.WithLabelValues("address", metrics.Outcome(err)).Inc() }()

	if !req.Auth.LoggedIn() {
		return nil, fmt.Errorf("customer authentication is required: %w", domain.ErrUnauthorized)
	}
	if err := validate.Struct(req.Address); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}

	addr = &domain.Address{CustomerID: req.Auth.CustomerID, CreatedAt: s.now().UTC()}
	if req.AddressID > 0 {
		existing, err := s.repo.Get(ctx, req.AddressID)
		if err != nil {
			return nil, err
		}
		if existing.CustomerID != req.Auth.CustomerID {
			return nil, fmt.Errorf("address %d: %w", req.AddressID, domain.ErrForbidden)
		}
		addr = existing
	}

	tel := strings.TrimSpace(req.Address.Telephone)
	decision := s.ledger.Decide(ctx, ledger.Query{
		Phone:       tel,
		CustomerID:  req.Auth.CustomerID,
		AddressID:   req.AddressID,
		BridgeToken: req.BridgeToken,
		ClientIP:    req.Auth.ClientIP,
	})
	proof := s.proofMarkers(req.AddressID, tel)
	proven := req.Address.PhoneVerified || req.Address.AddressPhoneVerified ||
		s.markers.Has(ctx, req.Auth.SessionID, proof...)
	if decision.Required && !proven {
		if req.BridgeToken != "" {
			return nil, fmt.Errorf("bridge token rejected for this address: %w", domain.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("phone number verification is required for this address: %w", domain.ErrAddressPhoneUnverified)
	}

	applyRequest(addr, req.Address)
	addr.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, addr); err != nil {
		return nil, err
	}

	if tel != "" && (proven || decision.Reason == ledger.ReasonBridgeToken) {
		s.ledger.SaveVerifiedAddressPhone(ctx, req.Auth, addr.AddressID, tel)
	}
	s.markers.Clear(ctx, req.Auth.SessionID, proof...)
	return addr, nil
}

// proofMarkers lists the session markers an earlier OTP exchange may have
// left for this address. New-address markers are keyed by both the raw and
// the digits-only phone.
func (s *service) proofMarkers(addressID int64, tel string) []string {
	if tel == "" {
		return nil
	}
	names := []string{session.NewAddressMarker(phone.Digits(tel))}
	if d := phone.Digits(tel); d != tel {
		names = append(names, session.NewAddressMarker(tel))
	}
	if addressID > 0 {
		names = append(names, session.AddressMarker(addressID))
	}
	return names
}

func applyRequest(a *domain.Address, r domain.SaveAddressRequest) {
	a.FirstName = r.FirstName
	a.LastName = r.LastName
	a.Street = r.Street
	a.City = r.City
	a.Region = r.Region
	a.Postcode = r.Postcode
	a.CountryID = strings.ToUpper(r.CountryID)
	a.Telephone = strings.TrimSpace(r.Telephone)
}
