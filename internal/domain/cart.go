package domain

import "time"

// Checkout steps recorded on a cart.
const (
	CartStepShipping = "shipping"
	CartStepPayment  = "payment"
)

// QuoteAddress is an address attached to a cart. It deliberately carries no
// verification field so nothing verification-related crosses the cart boundary.
type QuoteAddress struct {
	CustomerAddressID int64    `json:"customer_address_id,omitempty" dynamodbav:"customer_address_id,omitempty"`
	SaveInAddressBook bool     `json:"save_in_address_book" dynamodbav:"save_in_address_book"`
	FirstName         string   `json:"firstname" dynamodbav:"first_name"`
	LastName          string   `json:"lastname" dynamodbav:"last_name"`
	Street            []string `json:"street" dynamodbav:"street"`
	City              string   `json:"city" dynamodbav:"city"`
	Postcode          string   `json:"postcode" dynamodbav:"postcode"`
	CountryID         string   `json:"country_id" dynamodbav:"country_id"`
	Telephone         string   `json:"telephone" dynamodbav:"telephone"`
}

// Cart is the slice of the platform's quote the checkout gate needs.
type Cart struct {
	CartID          string        `json:"cart_id" dynamodbav:"cart_id"`
	CustomerID      int64         `json:"customer_id" dynamodbav:"customer_id"`
	ShippingAddress *QuoteAddress `json:"shipping_address,omitempty" dynamodbav:"shipping_address,omitempty"`
	BillingAddress  *QuoteAddress `json:"billing_address,omitempty" dynamodbav:"billing_address,omitempty"`
	ShippingMethod  string        `json:"shipping_method,omitempty" dynamodbav:"shipping_method,omitempty"`
	Step            string        `json:"step" dynamodbav:"step"`
	UpdatedAt       time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

// ShippingInformation is the checkout address-information submission.
type ShippingInformation struct {
	ShippingAddress              QuoteAddress  `json:"shipping_address"`
	BillingAddress               *QuoteAddress `json:"billing_address"`
	ShippingMethod               string        `json:"shipping_method"`
	PhoneVerified                bool          `json:"phone_verified"`
	ShippingAddressPhoneVerified bool          `json:"shipping_address_phone_verified"`
	BillingAddressPhoneVerified  bool          `json:"billing_address_phone_verified"`
}
