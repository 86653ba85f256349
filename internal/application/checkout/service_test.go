package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phone-otp-gate/internal/application/ledger"
	"github.com/phone-otp-gate/internal/application/session"
	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeCarts struct {
	carts map[string]*domain.Cart
	puts  int
}

func (f *fakeCarts) Get(_ context.Context, id string) (*domain.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCarts) Put(_ context.Context, c *domain.Cart) error {
	f.puts++
	cp := *c
	f.carts[c.CartID] = &cp
	return nil
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Decide(ctx context.Context, q ledger.Query) ledger.Decision {
	return m.Called(ctx, q).Get(0).(ledger.Decision)
}
func (m *mockLedger) SaveVerifiedAddressPhone(ctx context.Context, auth domain.AuthContext, id int64, phone string) bool {
	return m.Called(ctx, auth, id, phone).Bool(0)
}
func (m *mockLedger) MarkVerifiedAddressesByPhone(ctx context.Context, customerID int64, phone, ip string) int {
	return m.Called(ctx, customerID, phone, ip).Int(0)
}

var customer = domain.AuthContext{CustomerID: 7, SessionID: "s1", ClientIP: "10.0.0.1"}

var required = ledger.Decision{Required: true, Reason: ledger.ReasonNewAddress}

func newService(l *mockLedger) (Service, *fakeCarts, *session.Markers) {
	carts := &fakeCarts{carts: map[string]*domain.Cart{
		"c1": {CartID: "c1", CustomerID: 7, Step: domain.CartStepShipping},
	}}
	markers := session.NewMarkers(memory.NewStore(), time.Hour)
	return NewService(ServiceDeps{Carts: carts, Ledger: l, Markers: markers}), carts, markers
}

func quote(tel string) domain.QuoteAddress {
	return domain.QuoteAddress{FirstName: "Ada", LastName: "Lovelace", Street: []string{"Main 1"},
		City: "Istanbul", Postcode: "34000", CountryID: "TR", Telephone: tel}
}

func TestSaveAddressInformation_UnverifiedRejectedWithoutWrite(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.Anything).Return(required)
	svc, carts, _ := newService(l)

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567"), ShippingMethod: "flat"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAddressPhoneUnverified))
	assert.Equal(t, 0, carts.puts)
	assert.Equal(t, domain.CartStepShipping, carts.carts["c1"].Step)
}

func TestSaveAddressInformation_BillingUnverifiedBlocksWholeSave(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.MatchedBy(func(q ledger.Query) bool { return q.Phone == "5551234567" })).
		Return(ledger.Decision{Reason: ledger.ReasonProfilePhone})
	l.On("Decide", mock.Anything, mock.MatchedBy(func(q ledger.Query) bool { return q.Phone == "5559876543" })).
		Return(required)
	svc, carts, _ := newService(l)
	billing := quote("5559876543")

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567"), BillingAddress: &billing},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAddressPhoneUnverified))
	assert.Contains(t, err.Error(), "billing")
	assert.Equal(t, 0, carts.puts)
}

func TestSaveAddressInformation_SameBillingPhoneCheckedOnce(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.Anything).Return(ledger.Decision{Reason: ledger.ReasonAddressVerified}).Once()
	svc, carts, _ := newService(l)
	billing := quote(" 5551234567 ")

	cart, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567"), BillingAddress: &billing, ShippingMethod: "flat"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CartStepPayment, cart.Step)
	assert.Equal(t, "flat", cart.ShippingMethod)
	assert.Equal(t, 1, carts.puts)
	l.AssertNumberOfCalls(t, "Decide", 1)
}

func TestSaveAddressInformation_SessionMarkerProofIsCleared(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.Anything).Return(required)
	svc, _, markers := newService(l)
	ctx := context.Background()
	marker := session.CheckoutMarker(AddressTypeShipping, "5551234567")
	require.NoError(t, markers.Set(ctx, "s1", marker, "1"))

	cart, err := svc.SaveAddressInformation(ctx, SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("555 123 4567")},
	})

	require.NoError(t, err)
	assert.Equal(t, "555 123 4567", cart.ShippingAddress.Telephone)
	assert.Equal(t, "555 123 4567", cart.BillingAddress.Telephone)
	assert.False(t, markers.Has(ctx, "s1", marker))
	l.AssertNotCalled(t, "SaveVerifiedAddressPhone", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveAddressInformation_RequestFlagPersistsSavedAddress(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.Anything).Return(ledger.Decision{Required: true, Reason: ledger.ReasonExistingUnverified})
	l.On("SaveVerifiedAddressPhone", mock.Anything, customer, int64(12), "5551234567").Return(true)
	svc, _, _ := newService(l)
	shipping := quote("5551234567")
	shipping.CustomerAddressID = 12

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: shipping, ShippingAddressPhoneVerified: true},
	})

	require.NoError(t, err)
	l.AssertExpectations(t)
}

func TestSaveAddressInformation_BridgeTokenWithoutAddressIDMarksByPhone(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.MatchedBy(func(q ledger.Query) bool {
		return q.BridgeToken == "tok" && q.CustomerID == 7
	})).Return(ledger.Decision{Reason: ledger.ReasonBridgeToken})
	l.On("MarkVerifiedAddressesByPhone", mock.Anything, int64(7), "5551234567", "10.0.0.1").Return(2)
	svc, _, _ := newService(l)

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1", BridgeToken: "tok",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567")},
	})

	require.NoError(t, err)
	l.AssertExpectations(t)
}

func TestSaveAddressInformation_RejectedBridgeTokenReported(t *testing.T) {
	l := &mockLedger{}
	l.On("Decide", mock.Anything, mock.Anything).Return(required)
	svc, carts, _ := newService(l)

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1", BridgeToken: "stale",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567")},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
	assert.Contains(t, err.Error(), "shipping")
	assert.Equal(t, 0, carts.puts)
}

func TestSaveAddressInformation_ForeignCartForbidden(t *testing.T) {
	svc, carts, _ := newService(&mockLedger{})
	other := domain.AuthContext{CustomerID: 8, SessionID: "s2"}

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: other, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("5551234567")},
	})

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Equal(t, 0, carts.puts)
}

func TestSaveAddressInformation_EmptyPhoneSkipsLedger(t *testing.T) {
	l := &mockLedger{}
	svc, _, _ := newService(l)

	_, err := svc.SaveAddressInformation(context.Background(), SaveRequest{
		Auth: customer, CartID: "c1",
		Info: domain.ShippingInformation{ShippingAddress: quote("")},
	})

	require.NoError(t, err)
	l.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
}
