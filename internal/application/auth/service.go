package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// CustomerStore is the slice of the customer repository login needs.
type CustomerStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

// TokenSigner issues customer bearer tokens.
type TokenSigner interface {
	Sign(customerID int64) (string, error)
}

// Service exchanges customer credentials for a bearer token.
type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (bearer string, c *domain.Customer, err error)
}

type ServiceDeps struct {
	Customers CustomerStore
	Signer    TokenSigner
}

type service struct {
	customers CustomerStore
	signer    TokenSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{customers: deps.Customers, signer: deps.Signer}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.Customer, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return "", nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if s.signer == nil {
		return "", nil, fmt.Errorf("token signing is not configured: %w", domain.ErrUnauthorized)
	}

	c, err := s.customers.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("login: customer lookup failed", "err", err)
		}
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	bearer, err := s.signer.Sign(c.CustomerID)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return bearer, c, nil
}
