package domain

import "time"

// OtpRecord is one in-flight verification attempt. Phone is stored exactly as
// the client sent it; normalization happens at comparison time.
type OtpRecord struct {
	Code     string    `json:"code"`
	Phone    string    `json:"phone"`
	IssuedAt time.Time `json:"issued_at"`
}

// Expired reports whether the record is older than ttl at now.
func (r *OtpRecord) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.IssuedAt) > ttl
}

// Remaining returns the time left in the verification window, never negative.
func (r *OtpRecord) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - now.Sub(r.IssuedAt)
	if left < 0 {
		return 0
	}
	return left
}

// OtpStatus describes the pending OTP of a session.
type OtpStatus struct {
	HasPendingOtp bool    `json:"has_pending_otp"`
	PhoneNumber   *string `json:"phone_number"`
	TimeRemaining int     `json:"time_remaining"`
	IsExpired     bool    `json:"is_expired"`
}
