package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// Repository is the slice of the customer store this package needs.
type Repository interface {
	Get(ctx context.Context, customerID int64) (*domain.Customer, error)
	FindByPhone(ctx context.Context, variants []string) ([]domain.Customer, error)
	SetPhone(ctx context.Context, customerID int64, phone string, verified bool) error
}

// Service owns the phone_number/phone_verified profile attributes.
type Service interface {
	Get(ctx context.Context, customerID int64) (*domain.Customer, error)
	// IsPhoneAvailable is false when another customer has already verified phone.
	IsPhoneAvailable(ctx context.Context, customerID int64, phone string) (bool, error)
	SaveVerifiedPhone(ctx context.Context, customerID int64, phone string) error
	// VerifiedPhoneMatches reports whether phone equals the customer's own
	// verified profile phone after digits-only normalization.
	VerifiedPhoneMatches(ctx context.Context, customerID int64, phone string) (bool, error)
}

type ServiceDeps struct {
	Repo        Repository
	PhoneLocale string
}

type service struct {
	repo   Repository
	locale string
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.Repo, locale: deps.PhoneLocale}
}

func (s *service) Get(ctx context.Context, customerID int64) (*domain.Customer, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("customer id required: %w", domain.ErrUnauthorized)
	}
	return s.repo.Get(ctx, customerID)
}

func (s *service) IsPhoneAvailable(ctx context.Context, customerID int64, p string) (bool, error) {
	if strings.TrimSpace(p) == "" {
		return false, fmt.Errorf("phone number is required: %w", domain.ErrBadRequest)
	}
	owners, err := s.repo.FindByPhone(ctx, phone.Variants(p, s.locale))
	if err != nil {
		return false, fmt.Errorf("find customers by phone: %w", err)
	}
	for _, c := range owners {
		if c.PhoneVerified && c.CustomerID != customerID {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) SaveVerifiedPhone(ctx context.Context, customerID int64, p string) error {
	if customerID <= 0 {
		return fmt.Errorf("customer not logged in: %w", domain.ErrUnauthorized)
	}
	if err := s.repo.SetPhone(ctx, customerID, strings.TrimSpace(p), true); err != nil {
		return fmt.Errorf("save verified phone for customer %d: %w", customerID, err)
	}
	return nil
}

func (s *service) VerifiedPhoneMatches(ctx context.Context, customerID int64, p string) (bool, error) {
	if customerID <= 0 {
		return false, nil
	}
	c, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return false, err
	}
	return c.PhoneVerified && phone.Equal(c.PhoneNumber, p), nil
}
