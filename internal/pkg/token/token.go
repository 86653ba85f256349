package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// NewBridgeToken generates a URL-safe token from 32 random bytes.
func NewBridgeToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate bridge token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewOTP returns a uniformly random zero-padded numeric code of the given width.
func NewOTP(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
