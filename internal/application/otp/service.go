package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/infrastructure/sns"
	"github.com/phone-otp-gate/internal/pkg/metrics"
	pkgtoken "github.com/phone-otp-gate/internal/pkg/token"
)

const codeDigits = 6

// Availability reports whether a phone is free to be verified by a customer.
type Availability interface {
	IsPhoneAvailable(ctx context.Context, customerID int64, phone string) (bool, error)
}

type SendRequest struct {
	Auth  domain.AuthContext
	Phone string
	// SkipAvailabilityCheck is set by address and checkout flows, where a
	// phone already verified by another account is still a valid delivery number.
	SkipAvailabilityCheck bool
}

// Service issues and checks one-time passcodes.
type Service interface {
	// Send stores a fresh code for the phone and dispatches it by SMS. The code
	// is returned for internal callers only and must never reach the client.
	Send(ctx context.Context, req SendRequest) (string, error)
	// Verify checks code without consuming the record; repeated calls with the
	// same valid code succeed until Consume or expiry.
	Verify(ctx context.Context, sessionID, code, phoneHint string) (*domain.OtpRecord, error)
	// Consume removes a verified record and its mirrors.
	Consume(ctx context.Context, sessionID string, rec *domain.OtpRecord)
	Status(ctx context.Context, sessionID string) domain.OtpStatus
}

type ServiceDeps struct {
	Store        *Store
	SMSSender    sns.SMSSender
	Availability Availability
	Message      string
	TTL          time.Duration
	SMSTimeout   time.Duration
	Now          func() time.Time
}

type service struct {
	store        *Store
	smsSender    sns.SMSSender
	availability Availability
	message      string
	ttl          time.Duration
	smsTimeout   time.Duration
	now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:        deps.Store,
		smsSender:    deps.SMSSender,
		availability: deps.Availability,
		message:      deps.Message,
		ttl:          deps.TTL,
		smsTimeout:   deps.SMSTimeout,
		now:          deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.message == "" {
		s.message = "Your verification code is: {otp}"
	}
	return s
}

func (s *service) Send(ctx context.Context, req SendRequest) (code string, err error) {
	defer func() { metrics.OTPSentTotal.WithLabelValues(metrics.Outcome(err)).Inc() }()

	if strings.TrimSpace(req.Phone) == "" {
		return "", fmt.Errorf("phone number is required: %w", domain.ErrBadRequest)
	}
	if !req.SkipAvailabilityCheck && s.availability != nil {
		ok, err := s.availability.IsPhoneAvailable(ctx, req.Auth.CustomerID, req.Phone)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("phone %s: %w", maskPhone(req.Phone), domain.ErrPhoneUnavailable)
		}
	}

	code, err = pkgtoken.NewOTP(codeDigits)
	if err != nil {
		return "", err
	}
	rec := &domain.OtpRecord{Code: code, Phone: req.Phone, IssuedAt: s.now().UTC()}
	if err := s.store.Put(ctx, req.Auth.SessionID, rec); err != nil {
		return "", err
	}

	sendCtx := ctx
	if s.smsTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.smsTimeout)
		defer cancel()
	}
	msg := strings.ReplaceAll(s.message, "{otp}", code)
	if err := s.smsSender.SendSMS(sendCtx, req.Phone, msg); err != nil {
		slog.Error("otp sms dispatch failed", "phone", maskPhone(req.Phone), "err", err)
		return "", fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	return code, nil
}

func (s *service) Verify(ctx context.Context, sessionID, code, phoneHint string) (rec *domain.OtpRecord, err error) {
	defer func() { metrics.OTPVerifiedTotal.WithLabelValues(verifyLabel(err)).Inc() }()

	input := strings.TrimSpace(code)
	if input == "" {
		return nil, fmt.Errorf("otp code is required: %w", domain.ErrBadRequest)
	}

	rec, err = s.lookup(ctx, sessionID, input, phoneHint)
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.now(), s.ttl) {
		s.store.Purge(ctx, sessionID, rec)
		return nil, domain.ErrOtpExpired
	}
	if strings.TrimSpace(rec.Code) != input {
		return nil, domain.ErrOtpMismatch
	}
	return rec, nil
}

// lookup tries the session mirror first, then the phone mirror when the
// caller names a phone, then the code mirror. A fallback only happens when
// the preferred mirror is empty.
func (s *service) lookup(ctx context.Context, sessionID, code, phoneHint string) (*domain.OtpRecord, error) {
	attempts := []struct {
		strategy LookupStrategy
		id       string
	}{
		{LookupSession, sessionID},
		{LookupPhone, phoneHint},
		{LookupCode, code},
	}
	for _, a := range attempts {
		rec, err := s.store.Find(ctx, a.strategy, a.id)
		if errors.Is(err, domain.ErrOtpNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, domain.ErrOtpNotFound
}

func (s *service) Consume(ctx context.Context, sessionID string, rec *domain.OtpRecord) {
	if rec == nil {
		return
	}
	s.store.Purge(ctx, sessionID, rec)
}

func (s *service) Status(ctx context.Context, sessionID string) domain.OtpStatus {
	none := domain.OtpStatus{IsExpired: true}
	rec, err := s.store.Find(ctx, LookupSession, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrOtpNotFound) {
			slog.Warn("otp status lookup failed", "session_id", sessionID, "err", err)
		}
		return none
	}
	now := s.now()
	remaining := rec.Remaining(now, s.ttl)
	if remaining <= 0 {
		s.store.Purge(ctx, sessionID, rec)
		return none
	}
	p := rec.Phone
	return domain.OtpStatus{
		HasPendingOtp: true,
		PhoneNumber:   &p,
		TimeRemaining: int(remaining.Seconds()),
	}
}

func verifyLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrOtpExpired):
		return "expired"
	case errors.Is(err, domain.ErrOtpMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrOtpNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// maskPhone keeps the last four digits for log correlation.
func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
