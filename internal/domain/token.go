package domain

import "time"

// VerificationBridgeToken binds a completed OTP verification to a customer and
// a digits-only phone so that stateless clients can present it later.
type VerificationBridgeToken struct {
	Token           string    `json:"-"`
	CustomerID      int64     `json:"customer_id"`
	NormalizedPhone string    `json:"phone"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// IssuedToken is what callers hand back to the client.
type IssuedToken struct {
	Token     string `json:"verification_token"`
	ExpiresIn int    `json:"expires_in"`
}
