package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCustomers struct{ mock.Mock }

func (m *mockCustomers) Create(ctx context.Context, c *domain.Customer) error {
	err := m.Called(ctx, c).Error(0)
	if err == nil {
		c.CustomerID = 101
	}
	return err
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(customerID int64) (string, error) {
	args := m.Called(customerID)
	return args.String(0), args.Error(1)
}

func newService(cs *mockCustomers, required bool) (Service, *session.Markers) {
	kv := memory.NewStore()
	markers := session.NewMarkers(kv, time.Hour)
	signer := &mockSigner{}
	signer.On("Sign", mock.Anything).Return("bearer", nil).Maybe()
	return NewService(ServiceDeps{
		Customers:   cs,
		Markers:     markers,
		Cache:       kv,
		Signer:      signer,
		Required:    required,
		CacheTTL:    600 * time.Second,
		PhoneLocale: "TR",
	}), markers
}

func validRequest(phone string) domain.CreateCustomerRequest {
	return domain.CreateCustomerRequest{
		Email:       "ada@example.com",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Password:    "correct-horse",
		PhoneNumber: phone,
	}
}

func TestCreateAccount_VerificationRequired(t *testing.T) {
	cs := &mockCustomers{}
	svc, _ := newService(cs, true)

	_, err := svc.CreateAccount(context.Background(), "s1", validRequest("5551234567"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVerificationRequired))
	cs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAccount_SessionMarker(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc, markers := newService(cs, true)
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "s1", "+90 555 123 4567"))

	res, err := svc.CreateAccount(ctx, "s1", validRequest("05551234567"))

	require.NoError(t, err)
	assert.Equal(t, int64(101), res.Customer.CustomerID)
	assert.Equal(t, "05551234567", res.Customer.PhoneNumber)
	assert.True(t, res.Customer.PhoneVerified)
	assert.Equal(t, "bearer", res.Token)
	assert.NotEqual(t, "correct-horse", res.Customer.PasswordHash)
	assert.False(t, markers.Has(ctx, "s1", session.RegistrationVerifiedPhone))
}

func TestCreateAccount_PhoneHashCacheFromOtherContext(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc, _ := newService(cs, true)
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "graphql-session", "5551234567"))

	res, err := svc.CreateAccount(ctx, "", validRequest("5551234567"))
	require.NoError(t, err)
	assert.True(t, res.Customer.PhoneVerified)

	// the proof is spent
	_, err = svc.CreateAccount(ctx, "", validRequest("5551234567"))
	assert.True(t, errors.Is(err, domain.ErrVerificationRequired))
}

func TestCreateAccount_UsesSessionPhoneWhenNoneGiven(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc, _ := newService(cs, true)
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "s1", "5551234567"))

	res, err := svc.CreateAccount(ctx, "s1", validRequest(""))
	require.NoError(t, err)
	assert.Equal(t, "5551234567", res.Customer.PhoneNumber)
	assert.True(t, res.Customer.PhoneVerified)
}

func TestCreateAccount_FailureRestoresProof(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict).Once()
	cs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	svc, _ := newService(cs, true)
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "s1", "5551234567"))

	_, err := svc.CreateAccount(ctx, "s1", validRequest("5551234567"))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	res, err := svc.CreateAccount(ctx, "s1", validRequest("5551234567"))
	require.NoError(t, err)
	assert.True(t, res.Customer.PhoneVerified)
}

func TestCreateAccount_OptionalVerification(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc, _ := newService(cs, false)

	res, err := svc.CreateAccount(context.Background(), "s1", validRequest("5551234567"))
	require.NoError(t, err)
	assert.False(t, res.Customer.PhoneVerified)
	assert.Equal(t, "5551234567", res.Customer.PhoneNumber)
}

func TestCreateAccount_InvalidRequest(t *testing.T) {
	svc, _ := newService(&mockCustomers{}, true)
	req := validRequest("123")
	req.Email = "not-an-email"

	_, err := svc.CreateAccount(context.Background(), "s1", req)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// blockingCustomers holds every Create until release is closed.
type blockingCustomers struct {
	mu      sync.Mutex
	next    int64
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCustomers) Create(_ context.Context, c *domain.Customer) error {
	b.entered <- struct{}{}
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	c.CustomerID = b.next
	return nil
}

func TestCreateAccount_ConcurrentClaimsSpendOneProof(t *testing.T) {
	kv := memory.NewStore()
	cs := &blockingCustomers{entered: make(chan struct{}, 2), release: make(chan struct{})}
	svc := NewService(ServiceDeps{
		Customers:   cs,
		Markers:     session.NewMarkers(kv, time.Hour),
		Cache:       kv,
		Required:    true,
		CacheTTL:    600 * time.Second,
		PhoneLocale: "TR",
	})
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "s1", "+90 555 123 4567"))

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := svc.CreateAccount(ctx, "s1", validRequest("+90 555 123 4567"))
		first <- outcome{res, err}
	}()
	<-cs.entered

	// the first request is parked inside Create; a second one in another
	// session, spelling the phone differently, must find nothing to claim
	req := validRequest("05551234567")
	req.Email = "grace@example.com"
	_, err := svc.CreateAccount(ctx, "s2", req)
	assert.True(t, errors.Is(err, domain.ErrVerificationRequired))

	close(cs.release)
	got := <-first
	require.NoError(t, got.err)
	assert.True(t, got.res.Customer.PhoneVerified)
}

func TestRecordVerifiedPhone_SingleProofForAllSpellings(t *testing.T) {
	cs := &mockCustomers{}
	cs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	svc, _ := newService(cs, true)
	ctx := context.Background()
	require.NoError(t, svc.RecordVerifiedPhone(ctx, "", "+90 555 123 4567"))

	_, err := svc.CreateAccount(ctx, "", validRequest("5551234567"))
	require.NoError(t, err)

	for _, spelling := range []string{"+905551234567", "05551234567", "+90 555 123 4567"} {
		_, err = svc.CreateAccount(ctx, "", validRequest(spelling))
		assert.True(t, errors.Is(err, domain.ErrVerificationRequired), spelling)
	}
}
