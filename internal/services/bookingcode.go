package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// DefaultCodePrefix is used when no prefix is configured.
const DefaultCodePrefix = "BK"

var codeSpace = big.NewInt(100000)

// NewBookingCode returns prefix followed by five random digits, e.g. BK04217.
// Codes are short enough to read over the phone and are not guaranteed unique.
func NewBookingCode(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("booking code: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, n.Int64()), nil
}

// NormalizeCode trims surrounding whitespace. Case is kept as entered;
// comparisons against the ledger and the store are case-insensitive.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}
