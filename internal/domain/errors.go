package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so transports can map them to a user-facing message without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Phone verification failures.
var (
	ErrPhoneUnavailable       = errors.New("phone already verified by another account")
	ErrSendFailed             = errors.New("sms dispatch failed")
	ErrOtpNotFound            = errors.New("otp not found")
	ErrOtpExpired             = errors.New("otp expired")
	ErrOtpMismatch            = errors.New("otp mismatch")
	ErrVerificationRequired   = errors.New("phone verification required")
	ErrAddressPhoneUnverified = errors.New("address phone unverified")
	ErrTokenInvalid           = errors.New("verification token invalid")
	ErrPersistenceFailure     = errors.New("verification persistence failed")
)
