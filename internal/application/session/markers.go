// Package session keeps short-lived verification markers scoped to an
// anonymous or browser session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/phone-otp-gate/internal/domain"
	"github.com/phone-otp-gate/internal/pkg/phone"
)

// RegistrationVerifiedPhone holds the phone a guest verified before sign-up.
const RegistrationVerifiedPhone = "registration_verified_phone"

// NewAddressMarker names the marker for a verified phone on an unsaved address.
func NewAddressMarker(p string) string {
	return "new_address_phone_verified_" + phone.Hash(p)
}

// AddressMarker names the marker for a verified phone on a saved address.
func AddressMarker(addressID int64) string {
	return "address_phone_verified_" + strconv.FormatInt(addressID, 10)
}

// CheckoutMarker names the marker for a verified checkout address phone;
// addressType is "shipping" or "billing".
func CheckoutMarker(addressType, p string) string {
	return "checkout_" + addressType + "_phone_verified_" + phone.Hash(p)
}

// Markers stores marker values in the shared key-value store. Every
// operation is a no-op for an empty session id.
type Markers struct {
	kv  domain.KeyValueStore
	ttl time.Duration
}

func NewMarkers(kv domain.KeyValueStore, ttl time.Duration) *Markers {
	return &Markers{kv: kv, ttl: ttl}
}

func key(sessionID, name string) string {
	return "session:" + sessionID + ":" + name
}

func (m *Markers) Set(ctx context.Context, sessionID, name, value string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.kv.Save(ctx, key(sessionID, name), []byte(value), m.ttl); err != nil {
		return fmt.Errorf("set session marker %s: %w", name, err)
	}
	return nil
}

// Get returns the marker value; a lookup error is treated as absent.
func (m *Markers) Get(ctx context.Context, sessionID, name string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	b, err := m.kv.Load(ctx, key(sessionID, name))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("session marker lookup failed", "marker", name, "err", err)
		}
		return "", false
	}
	return string(b), true
}

func (m *Markers) Has(ctx context.Context, sessionID string, names ...string) bool {
	for _, n := range names {
		if _, ok := m.Get(ctx, sessionID, n); ok {
			return true
		}
	}
	return false
}

// Take reads and clears a marker atomically; concurrent callers see at most one hit.
func (m *Markers) Take(ctx context.Context, sessionID, name string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	b, err := m.kv.Take(ctx, key(sessionID, name))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("session marker take failed", "marker", name, "err", err)
		}
		return "", false
	}
	return string(b), true
}

// Clear removes markers, logging failures.
func (m *Markers) Clear(ctx context.Context, sessionID string, names ...string) {
	if sessionID == "" || len(names) == 0 {
		return
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = key(sessionID, n)
	}
	if err := m.kv.Remove(ctx, keys...); err != nil {
		slog.Warn("failed to clear session markers", "count", len(keys), "err", err)
	}
}
