package checkout

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
)

const (
	AddressTypeShipping = "shipping"
	AddressTypeBilling  = "billing"
)

type CartRepository interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Put(ctx context.Context, c *domain.Cart) error
}

type Ledger interface {
	Decide(ctx context.Context, q ledger.Query) ledger.Decision
	SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, addressID int64, phone string) bool
	MarkVerifiedAddressesByPhone(ctx context.Context, customerID int64, phone, clientIP string) int
}

type SaveRequest struct {
	Auth        domain.AuthContext
	CartID      string
	Info        domain.ShippingInformation
	BridgeToken string
}

// Service applies checkout address information to a cart once every address
// phone that needs verification carries proof.
type Service interface {
	SaveAddressInformation(ctx context.Context, req SaveRequest) (*domain.Cart, error)
}

type ServiceDeps struct {
	Carts   CartRepository
	Ledger  Ledger
	Markers *session.Markers
	Now     func() time.Time
}

type service struct {
	carts   CartRepository
	ledger  Ledger
	markers *session.Markers
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{carts: deps.Carts, ledger: deps.Ledger, markers: deps.Markers, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// check is the gate result for one address of the submission.
type check struct {
	addressType string
	address     *domain.QuoteAddress
	decision    ledger.Decision
	proven      bool
	markers     []string
}

func (s *service) SaveAddressInformation(ctx context.Context, req SaveRequest) (cart *domain.Cart, err error) {
	defer func() { metrics.GateDecisionsTotal.WithLabelValues("checkout", metrics.Outcome(err)).Inc() }()

	cart, err = s.carts.Get(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if cart.CustomerID > 0 && cart.CustomerID != req.Auth.CustomerID {
		return nil, fmt.Errorf("cart %s: %w", req.CartID, domain.ErrForbidden)
	}

	info := req.Info
	targets := []struct {
		addressType string
		address     *domain.QuoteAddress
	}{{AddressTypeShipping, &info.ShippingAddress}}
	if info.BillingAddress != nil && !sameTelephone(info.BillingAddress.Telephone, info.ShippingAddress.Telephone) {
		targets = append(targets, struct {
			addressType string
			address     *domain.QuoteAddress
		}{AddressTypeBilling, info.BillingAddress})
	}

	// every address is checked before anything is written
	var checks []check
	for _, t := range targets {
		c := s.check(ctx, req, cart.CustomerID, t.addressType, t.address)
		if c.decision.Required && !c.proven {
			if req.BridgeToken != "" {
				return nil, fmt.Errorf("bridge token rejected for the %s address: %w", t.addressType, domain.ErrTokenInvalid)
			}
			return nil, fmt.Errorf("phone number verification is required for the %s address: %w",
				t.addressType, domain.ErrAddressPhoneUnverified)
		}
		checks = append(checks, c)
	}

	cart.ShippingAddress = &info.ShippingAddress
	if info.BillingAddress != nil {
		cart.BillingAddress = info.BillingAddress
	} else {
		billing := info.ShippingAddress
		cart.BillingAddress = &billing
	}
	cart.ShippingMethod = info.ShippingMethod
	cart.Step = domain.CartStepPayment
	cart.UpdatedAt = s.now().UTC()
	if err := s.carts.Put(ctx, cart); err != nil {
		return nil, err
	}

	for _, c := range checks {
		s.persist(ctx, req.Auth, cart.CustomerID, c)
	}
	return cart, nil
}

func (s *service) check(ctx context.Context, req SaveRequest, customerID int64, addressType string, a *domain.QuoteAddress) check {
	tel := strings.TrimSpace(a.Telephone)
	c := check{addressType: addressType, address: a}
	if tel == "" {
		c.decision = ledger.Decision{Reason: ledger.ReasonEmptyPhone}
		return c
	}
	c.decision = s.ledger.Decide(ctx, ledger.Query{
		Phone:       tel,
		CustomerID:  customerID,
		AddressID:   a.CustomerAddressID,
		BridgeToken: req.BridgeToken,
		ClientIP:    req.Auth.ClientIP,
	})

	c.markers = []string{session.CheckoutMarker(addressType, tel)}
	if d := phone.Digits(tel); d != tel {
		c.markers = append(c.markers, session.CheckoutMarker(addressType, d))
	}
	if a.CustomerAddressID > 0 {
		c.markers = append(c.markers, session.AddressMarker(a.CustomerAddressID))
	}

	typeFlag := req.Info.ShippingAddressPhoneVerified
	if addressType == AddressTypeBilling {
		typeFlag = req.Info.BillingAddressPhoneVerified
	}
	c.proven = req.Info.PhoneVerified || typeFlag || s.markers.Has(ctx, req.Auth.SessionID, c.markers...)
	return c
}

// persist records verification confirmed by this submission. It runs after
// the cart is saved and never fails the request.
func (s *service) persist(ctx context.Context, auth domain.AuthContext, customerID int64, c check) {
	tel := strings.TrimSpace(c.address.Telephone)
	if tel == "" {
		return
	}
	switch {
	case c.decision.Reason == ledger.ReasonBridgeToken:
		if c.address.CustomerAddressID > 0 {
			s.ledger.SaveVerifiedAddressPhone(ctx, auth, c.address.CustomerAddressID, tel)
		} else {
			s.ledger.MarkVerifiedAddressesByPhone(ctx, customerID, tel, auth.ClientIP)
		}
	case c.proven && c.address.CustomerAddressID > 0:
		s.ledger.SaveVerifiedAddressPhone(ctx, auth, c.address.CustomerAddressID, tel)
	}
	s.markers.Clear(ctx, auth.SessionID, c.markers...)
}

func sameTelephone(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
