package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phone-otp-gate/internal/application/otp"
	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTP struct{ mock.Mock }

func (m *mockOTP) Send(ctx context.Context, req otp.SendRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
func (m *mockOTP) Verify(ctx context.Context, sid, code, hint string) (*domain.OtpRecord, error) {
	args := m.Called(ctx, sid, code, hint)
	if r, _ := args.Get(0).(*domain.OtpRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTP) Consume(ctx context.Context, sid string, rec *domain.OtpRecord) {
	m.Called(ctx, sid, rec)
}
func (m *mockOTP) Status(ctx context.Context, sid string) domain.OtpStatus {
	return m.Called(ctx, sid).Get(0).(domain.OtpStatus)
}

type mockCustomers struct{ mock.Mock }

func (m *mockCustomers) IsPhoneAvailable(ctx context.Context, id int64, p string) (bool, error) {
	args := m.Called(ctx, id, p)
	return args.Bool(0), args.Error(1)
}
func (m *mockCustomers) SaveVerifiedPhone(ctx context.Context, id int64, p string) error {
	return m.Called(ctx, id, p).Error(0)
}
func (m *mockCustomers) VerifiedPhoneMatches(ctx context.Context, id int64, p string) (bool, error) {
	args := m.Called(ctx, id, p)
	return args.Bool(0), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) HasVerifiedAddressWithPhone(ctx context.Context, id int64, p string) bool {
	return m.Called(ctx, id, p).Bool(0)
}
func (m *mockLedger) SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, id int64, p string) bool {
	return m.Called(ctx, auth, id, p).Bool(0)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) Issue(ctx context.Context, id int64, p string) (*domain.IssuedToken, error) {
	args := m.Called(ctx, id, p)
	if t, _ := args.Get(0).(*domain.IssuedToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRegistration struct{ mock.Mock }

func (m *mockRegistration) RecordVerifiedPhone(ctx context.Context, sid, p string) error {
	return m.Called(ctx, sid, p).Error(0)
}

// --- builder ---

type fixture struct {
	otp     *mockOTP
	cust    *mockCustomers
	ledger  *mockLedger
	tokens  *mockTokens
	reg     *mockRegistration
	markers *session.Markers
	svc     Service
}

func newFixture() *fixture {
	f := &fixture{
		otp: &mockOTP{}, cust: &mockCustomers{}, ledger: &mockLedger{},
		tokens: &mockTokens{}, reg: &mockRegistration{},
		markers: session.NewMarkers(memory.NewStore(), time.Hour),
	}
	f.svc = NewService(ServiceDeps{
		OTP: f.otp, Customers: f.cust, Ledger: f.ledger, Tokens: f.tokens,
		Registration: f.reg, Markers: f.markers, PhoneLocale: "TR",
	})
	return f
}

var (
	guest    = domain.AuthContext{SessionID: "s1"}
	customer = domain.AuthContext{CustomerID: 7, SessionID: "s1", ClientIP: "10.0.0.1"}
)

func record(p string) *domain.OtpRecord {
	return &domain.OtpRecord{Code: "123456", Phone: p, IssuedAt: time.Now()}
}

// --- tests ---

func TestParseFlow(t *testing.T) {
	f, err := ParseFlow("")
	require.NoError(t, err)
	assert.Equal(t, FlowAccount, f)

	f, err = ParseFlow(" Checkout ")
	require.NoError(t, err)
	assert.Equal(t, FlowCheckout, f)

	_, err = ParseFlow("wishlist")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestSendOtp_AddressFlowSkipsAvailability(t *testing.T) {
	fx := newFixture()
	fx.otp.On("Send", mock.Anything, otp.SendRequest{Auth: customer, Phone: "5551234567", SkipAvailabilityCheck: true}).
		Return("123456", nil)

	err := fx.svc.SendOtp(context.Background(), SendInput{Auth: customer, Phone: "5551234567", Flow: FlowAddress})

	require.NoError(t, err)
	fx.otp.AssertExpectations(t)
}

func TestSendOtp_NormalizesForGraphQL(t *testing.T) {
	fx := newFixture()
	fx.otp.On("Send", mock.Anything, otp.SendRequest{Auth: guest, Phone: "5551234567"}).Return("123456", nil)

	err := fx.svc.SendOtp(context.Background(), SendInput{Auth: guest, Phone: "+90 555 123 45 67", Flow: FlowRegistration, Normalize: true})

	require.NoError(t, err)
	fx.otp.AssertExpectations(t)
}

func TestSendOtp_EmptyPhone(t *testing.T) {
	fx := newFixture()
	err := fx.svc.SendOtp(context.Background(), SendInput{Auth: guest, Phone: "  "})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	fx.otp.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestVerifyOtp_LoggedInSavesProfilePhone(t *testing.T) {
	fx := newFixture()
	rec := record("5551234567")
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "").Return(rec, nil)
	fx.cust.On("SaveVerifiedPhone", mock.Anything, int64(7), "5551234567").Return(nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()

	res, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: customer, Code: "123456", Flow: FlowAccount})

	require.NoError(t, err)
	assert.True(t, res.CustomerUpdated)
	assert.True(t, res.PhoneVerified)
	fx.otp.AssertExpectations(t)
}

func TestVerifyOtp_ProfileSaveFailureKeepsRecord(t *testing.T) {
	fx := newFixture()
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "").Return(record("5551234567"), nil)
	fx.cust.On("SaveVerifiedPhone", mock.Anything, int64(7), "5551234567").Return(errors.New("dynamo down"))

	res, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: customer, Code: "123456"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistenceFailure))
	assert.Contains(t, err.Error(), "verified but could not be saved")
	require.NotNil(t, res)
	assert.True(t, res.PhoneVerified)
	assert.False(t, res.CustomerUpdated)
	fx.otp.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_GuestRecordsRegistrationPhone(t *testing.T) {
	fx := newFixture()
	rec := record("5551234567")
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "5551234567").Return(rec, nil)
	fx.reg.On("RecordVerifiedPhone", mock.Anything, "s1", "5551234567").Return(nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()

	res, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: guest, Code: "123456", Phone: "5551234567", Flow: FlowRegistration})

	require.NoError(t, err)
	assert.False(t, res.CustomerUpdated)
	fx.reg.AssertExpectations(t)
	fx.cust.AssertNotCalled(t, "SaveVerifiedPhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_AddressFlowSetsMarkersAndIssuesToken(t *testing.T) {
	fx := newFixture()
	rec := record("555 123 4567")
	tok := &domain.IssuedToken{Token: "tok", ExpiresIn: 300}
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "").Return(rec, nil)
	fx.ledger.On("SaveVerifiedAddressPhone", mock.Anything, customer, int64(12), "555 123 4567").Return(true)
	fx.tokens.On("Issue", mock.Anything, int64(7), "555 123 4567").Return(tok, nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()
	ctx := context.Background()

	res, err := fx.svc.VerifyOtp(ctx, VerifyInput{
		Auth: customer, Code: "123456", Flow: FlowCheckout, AddressType: "shipping", CustomerAddressID: 12,
	})

	require.NoError(t, err)
	assert.Equal(t, tok, res.Token)
	assert.True(t, fx.markers.Has(ctx, "s1", session.NewAddressMarker("5551234567")))
	assert.True(t, fx.markers.Has(ctx, "s1", session.CheckoutMarker("shipping", "5551234567")))
	assert.False(t, fx.markers.Has(ctx, "s1", session.CheckoutMarker("billing", "5551234567")))
	assert.True(t, fx.markers.Has(ctx, "s1", session.AddressMarker(12)))
	fx.cust.AssertNotCalled(t, "SaveVerifiedPhone", mock.Anything, mock.Anything, mock.Anything)
	fx.ledger.AssertExpectations(t)
}

func TestVerifyOtp_GuestAddressFlowGetsNoToken(t *testing.T) {
	fx := newFixture()
	rec := record("5551234567")
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "").Return(rec, nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()
	ctx := context.Background()

	res, err := fx.svc.VerifyOtp(ctx, VerifyInput{Auth: guest, Code: "123456", Flow: FlowCheckout})

	require.NoError(t, err)
	assert.Nil(t, res.Token)
	assert.True(t, fx.markers.Has(ctx, "s1", session.CheckoutMarker("billing", "5551234567")))
	fx.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_Mismatch(t *testing.T) {
	fx := newFixture()
	fx.otp.On("Verify", mock.Anything, "s1", "000000", "").Return(nil, domain.ErrOtpMismatch)

	_, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: customer, Code: "000000"})

	assert.True(t, errors.Is(err, domain.ErrOtpMismatch))
	fx.otp.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_CodeOwnedByAnotherPhone(t *testing.T) {
	fx := newFixture()
	other := record("5559998877")
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "5551234567").Return(other, nil)

	_, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: customer, Code: "123456", Phone: "5551234567"})

	assert.True(t, errors.Is(err, domain.ErrOtpMismatch))
	fx.otp.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
	fx.cust.AssertNotCalled(t, "SaveVerifiedPhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_NamedPhoneInLocalSpelling(t *testing.T) {
	fx := newFixture()
	rec := record("5551234567")
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "0555 123 45 67").Return(rec, nil)
	fx.cust.On("SaveVerifiedPhone", mock.Anything, int64(7), "5551234567").Return(nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()

	res, err := fx.svc.VerifyOtp(context.Background(), VerifyInput{Auth: customer, Code: "123456", Phone: "0555 123 45 67"})

	require.NoError(t, err)
	assert.True(t, res.CustomerUpdated)
	fx.otp.AssertExpectations(t)
}

func TestVerifyAddressOtp_CodeOwnedByAnotherPhone(t *testing.T) {
	fx := newFixture()
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "5551234567").Return(record("5559998877"), nil)

	_, err := fx.svc.VerifyAddressOtp(context.Background(), customer, "123456", "5551234567")

	assert.True(t, errors.Is(err, domain.ErrOtpMismatch))
	fx.tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAddressOtp_RequiresCustomer(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.VerifyAddressOtp(context.Background(), guest, "123456", "")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	fx.otp.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAddressOtp_IssuesToken(t *testing.T) {
	fx := newFixture()
	rec := record("5551234567")
	tok := &domain.IssuedToken{Token: "tok", ExpiresIn: 300}
	fx.otp.On("Verify", mock.Anything, "s1", "123456", "").Return(rec, nil)
	fx.tokens.On("Issue", mock.Anything, int64(7), "5551234567").Return(tok, nil)
	fx.otp.On("Consume", mock.Anything, "s1", rec).Return()

	got, err := fx.svc.VerifyAddressOtp(context.Background(), customer, "123456", "")

	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	fx.otp.AssertExpectations(t)
}

func TestIsPhoneVerified(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	fx.cust.On("VerifiedPhoneMatches", mock.Anything, int64(7), "5551234567").Return(false, nil)
	fx.ledger.On("HasVerifiedAddressWithPhone", mock.Anything, int64(7), "5551234567").Return(true)

	ok, err := fx.svc.IsPhoneVerified(ctx, customer, "5551234567")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fx.svc.IsPhoneVerified(ctx, guest, "5551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatePhone(t *testing.T) {
	fx := newFixture()
	fx.cust.On("IsPhoneAvailable", mock.Anything, int64(0), "5551234567").Return(false, nil)

	ok, err := fx.svc.ValidatePhone(context.Background(), guest, "5551234567")

	require.NoError(t, err)
	assert.False(t, ok)
}
