package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// LookupStrategy names one of the mirror keys a record is written under.
type LookupStrategy int

const (
	// LookupSession finds the record sent from the caller's own session.
	LookupSession LookupStrategy = iota
	// LookupPhone finds the latest record sent to a phone, from any context.
	LookupPhone
	// LookupCode finds a record by the code alone, for verifiers that share
	// neither session nor phone with the sender.
	LookupCode
)

func (l LookupStrategy) String() string {
	switch l {
	case LookupSession:
		return "session"
	case LookupPhone:
		return "phone"
	case LookupCode:
		return "code"
	default:
		return "unknown"
	}
}

// Store persists OTP records under three mirror keys so that verification
// succeeds regardless of which context the verifying request arrives from.
type Store struct {
	kv      domain.KeyValueStore
	ttl     time.Duration
	timeout time.Duration
}

func NewStore(kv domain.KeyValueStore, ttl, timeout time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl, timeout: timeout}
}

// Key returns the storage key for a lookup. Phone ids are reduced to digits
// before hashing so formatting does not split mirrors.
func (s *Store) Key(strategy LookupStrategy, id string) string {
	switch strategy {
	case LookupPhone:
		return "otp:phone:" + phone.Hash(phone.Digits(id))
	case LookupCode:
		return "otp:code:" + strings.TrimSpace(id)
	default:
		return "otp:session:" + id
	}
}

// Put writes rec under every applicable mirror. A record it supersedes loses
// its code mirror so the old code stops verifying.
func (s *Store) Put(ctx context.Context, sessionID string, rec *domain.OtpRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.dropSupersededCodes(ctx, sessionID, rec)

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	for _, key := range s.keys(sessionID, rec) {
		if err := s.kv.Save(ctx, key, b, s.ttl); err != nil {
			return fmt.Errorf("store otp record: %w", err)
		}
	}
	return nil
}

// Find loads the record stored under one mirror. Absent keys map to ErrOtpNotFound.
func (s *Store) Find(ctx context.Context, strategy LookupStrategy, id string) (*domain.OtpRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrOtpNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, err := s.kv.Load(ctx, s.Key(strategy, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("load otp record by %s: %w", strategy, err)
	}
	var rec domain.OtpRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record by %s: %w", strategy, err)
	}
	return &rec, nil
}

// Purge removes rec and all of its mirrors. Failures are logged only; an
// orphaned mirror expires on its own TTL.
func (s *Store) Purge(ctx context.Context, sessionID string, rec *domain.OtpRecord) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.kv.Remove(ctx, s.keys(sessionID, rec)...); err != nil {
		slog.Warn("failed to purge otp record", "session_id", sessionID, "err", err)
	}
}

func (s *Store) keys(sessionID string, rec *domain.OtpRecord) []string {
	keys := make([]string, 0, 3)
	if sessionID != "" {
		keys = append(keys, s.Key(LookupSession, sessionID))
	}
	if phone.Digits(rec.Phone) != "" {
		keys = append(keys, s.Key(LookupPhone, rec.Phone))
	}
	if rec.Code != "" {
		keys = append(keys, s.Key(LookupCode, rec.Code))
	}
	return keys
}

func (s *Store) dropSupersededCodes(ctx context.Context, sessionID string, next *domain.OtpRecord) {
	var stale []string
	for _, l := range []struct {
		strategy LookupStrategy
		id       string
	}{{LookupSession, sessionID}, {LookupPhone, next.Phone}} {
		prev, err := s.Find(ctx, l.strategy, l.id)
		if err != nil || prev.Code == next.Code {
			continue
		}
		stale = append(stale, s.Key(LookupCode, prev.Code))
	}
	if len(stale) == 0 {
		return
	}
	if err := s.kv.Remove(ctx, stale...); err != nil {
		slog.Warn("failed to drop superseded otp codes", "err", err)
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
