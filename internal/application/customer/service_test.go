package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Get(ctx context.Context, customerID int64) (*domain.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, _ := args.Get(0).(*domain.Customer); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) FindByPhone(ctx context.Context, variants []string) ([]domain.Customer, error) {
	args := m.Called(ctx, variants)
	cs, _ := args.Get(0).([]domain.Customer)
	return cs, args.Error(1)
}
func (m *mockRepo) SetPhone(ctx context.Context, customerID int64, phone string, verified bool) error {
	return m.Called(ctx, customerID, phone, verified).Error(0)
}

func newService(r *mockRepo) Service {
	return NewService(ServiceDeps{Repo: r, PhoneLocale: "TR"})
}

func TestIsPhoneAvailable_VerifiedByAnother(t *testing.T) {
	r := &mockRepo{}
	r.On("FindByPhone", mock.Anything, []string{"05551234567", "5551234567"}).
		Return([]domain.Customer{{CustomerID: 9, PhoneVerified: true}}, nil)

	ok, err := newService(r).IsPhoneAvailable(context.Background(), 7, "05551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsPhoneAvailable_OwnPhoneOrUnverified(t *testing.T) {
	r := &mockRepo{}
	r.On("FindByPhone", mock.Anything, mock.Anything).
		Return([]domain.Customer{{CustomerID: 7, PhoneVerified: true}, {CustomerID: 9, PhoneVerified: false}}, nil)

	ok, err := newService(r).IsPhoneAvailable(context.Background(), 7, "5551234567")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveVerifiedPhone_GuestRejected(t *testing.T) {
	err := newService(&mockRepo{}).SaveVerifiedPhone(context.Background(), 0, "5551234567")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestSaveVerifiedPhone(t *testing.T) {
	r := &mockRepo{}
	r.On("SetPhone", mock.Anything, int64(7), "5551234567", true).Return(nil)

	require.NoError(t, newService(r).SaveVerifiedPhone(context.Background(), 7, " 5551234567 "))
	r.AssertExpectations(t)
}

func TestVerifiedPhoneMatches(t *testing.T) {
	r := &mockRepo{}
	r.On("Get", mock.Anything, int64(7)).Return(&domain.Customer{CustomerID: 7, PhoneNumber: "555 123 4567", PhoneVerified: true}, nil)
	r.On("Get", mock.Anything, int64(8)).Return(&domain.Customer{CustomerID: 8, PhoneNumber: "5551234567"}, nil)
	svc := newService(r)

	ok, err := svc.VerifiedPhoneMatches(context.Background(), 7, "(555) 123-4567")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifiedPhoneMatches(context.Background(), 8, "5551234567")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifiedPhoneMatches(context.Background(), 0, "5551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}
