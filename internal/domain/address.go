package domain

import "time"

// Address is a saved customer address.
type Address struct {
	AddressID  int64     `json:"id" dynamodbav:"address_id"`
	CustomerID int64     `json:"customer_id" dynamodbav:"customer_id"`
	FirstName  string    `json:"firstname" dynamodbav:"first_name"`
	LastName   string    `json:"lastname" dynamodbav:"last_name"`
	Street     []string  `json:"street" dynamodbav:"street"`
	City       string    `json:"city" dynamodbav:"city"`
	Region     string    `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Postcode   string    `json:"postcode" dynamodbav:"postcode"`
	CountryID  string    `json:"country_id" dynamodbav:"country_id"`
	Telephone  string    `json:"telephone" dynamodbav:"telephone"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// AddressPhoneVerification is the durable per-address verification record.
type AddressPhoneVerification struct {
	AddressID  int64     `json:"address_id" dynamodbav:"address_id"`
	IsVerified bool      `json:"is_verified" dynamodbav:"is_verified"`
	VerifiedAt time.Time `json:"verified_at" dynamodbav:"verified_at"`
	VerifiedIP string    `json:"verified_ip,omitempty" dynamodbav:"verified_ip,omitempty"`
}

// SaveAddressRequest is the address create/update payload. The verification
// flags are request-level proofs and are never persisted on the address.
type SaveAddressRequest struct {
	FirstName            string   `json:"firstname" validate:"required"`
	LastName             string   `json:"lastname" validate:"required"`
	Street               []string `json:"street" validate:"required,min=1"`
	City                 string   `json:"city" validate:"required"`
	Region               string   `json:"region"`
	Postcode             string   `json:"postcode" validate:"required"`
	CountryID            string   `json:"country_id" validate:"required,len=2"`
	Telephone            string   `json:"telephone" validate:"omitempty,phone"`
	PhoneVerified        bool     `json:"phone_verified"`
	AddressPhoneVerified bool     `json:"address_phone_verified"`
}
