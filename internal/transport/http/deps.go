package http

import (
	"context"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/sns"
	"github.com/phone-otp-gate/internal/transport/http/middleware"
)

// CustomerRepository is the minimal interface the router requires from a customer store.
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	Get(ctx context.Context, customerID int64) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindByPhone(ctx context.Context, variants []string) ([]domain.Customer, error)
	SetPhone(ctx context.Context, customerID int64, phone string, verified bool) error
}

// AddressRepository is the minimal interface the router requires from an address store.
type AddressRepository interface {
	Get(ctx context.Context, addressID int64) (*domain.Address, error)
	Save(ctx context.Context, a *domain.Address) error
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Address, error)
}

// CartRepository is the minimal interface the router requires from a cart store.
type CartRepository interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Put(ctx context.Context, c *domain.Cart) error
}

// AddressVerificationRepository is the durable verification ledger store
// (DynamoDB or Postgres).
type AddressVerificationRepository interface {
	Upsert(ctx context.Context, v *domain.AddressPhoneVerification) error
	Get(ctx context.Context, addressID int64) (*domain.AddressPhoneVerification, error)
}

// TokenProvider signs and verifies customer bearer tokens.
type TokenProvider interface {
	middleware.TokenVerifier
	Sign(customerID int64) (string, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CustomerRepo            CustomerRepository
	AddressRepo             AddressRepository
	CartRepo                CartRepository
	AddressVerificationRepo AddressVerificationRepository
	// KV backs OTP records, bridge tokens, session markers and the
	// registration cache.
	KV          domain.KeyValueStore
	SMSSender   sns.SMSSender
	JWTProvider TokenProvider
}
