// Package phone normalizes and fingerprints phone numbers.
//
// Two normalizations exist and they are not interchangeable: Digits is the
// comparison form used by every equality check, while Canonical applies the
// locale rule used when looking numbers up against stored customer phones.
package phone

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digits strips every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal compares two phones in digits-only form. Two empty phones never match.
func Equal(a, b string) bool {
	da, db := Digits(a), Digits(b)
	return da != "" && da == db
}

// Canonical applies the locale rule for the given country code. For "TR" it
// strips characters other than digits and '+', drops a leading "+90" and then
// a single leading "0". Unknown locales fall back to Digits.
func Canonical(raw, locale string) string {
	switch strings.ToUpper(locale) {
	case "TR":
		var b strings.Builder
		for _, r := range raw {
			if (r >= '0' && r <= '9') || r == '+' {
				b.WriteRune(r)
			}
		}
		s := b.String()
		s = strings.TrimPrefix(s, "+90")
		s = strings.TrimPrefix(s, "0")
		return strings.ReplaceAll(s, "+", "")
	default:
		return Digits(raw)
	}
}

// Variants returns the distinct non-empty forms a stored phone may have been
// written in: the raw value, its digits and its canonical form.
func Variants(raw, locale string) []string {
	seen := make(map[string]struct{}, 3)
	var out []string
	for _, v := range []string{strings.TrimSpace(raw), Digits(raw), Canonical(raw, locale)} {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Hash returns a stable opaque key for phone, used to build cache and
// session-marker keys without embedding the number itself.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}
