package domain

import "time"

// Customer is the platform's customer record. Only PhoneNumber and
// PhoneVerified are owned by the phone verification flows.
type Customer struct {
	CustomerID    int64     `json:"id" dynamodbav:"customer_id"`
	Email         string    `json:"email" dynamodbav:"email"`
	FirstName     string    `json:"firstname" dynamodbav:"first_name"`
	LastName      string    `json:"lastname" dynamodbav:"last_name"`
	PasswordHash  string    `json:"-" dynamodbav:"password_hash"`
	PhoneNumber   string    `json:"phone_number,omitempty" dynamodbav:"phone_number,omitempty"`
	PhoneVerified bool      `json:"phone_verified" dynamodbav:"phone_verified"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

type CreateCustomerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"firstname" validate:"required"`
	LastName    string `json:"lastname" validate:"required"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
