package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber builds the human-readable document number for a sequence
// value, e.g. FormatNumber(KindQuote, "ACME", 7) -> "D-ACME-007".
// The numeric suffix is zero-padded to at least three digits.
func FormatNumber(kind DocumentKind, clientCode string, n int64) string {
	return fmt.Sprintf("%s-%s-%03d", kind.NumberPrefix(), clientCode, n)
}

// ParseNumberSuffix extracts the integer suffix of a number belonging to
// the (kind, clientCode) namespace. The second return is false when the
// number does not match the namespace pattern.
func ParseNumberSuffix(kind DocumentKind, clientCode, number string) (int64, bool) {
	prefix := kind.NumberPrefix() + "-" + clientCode + "-"
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
