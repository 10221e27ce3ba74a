package voucher

import (
	"fmt"
	"strings"
)

// FormatNumber renders a voucher number from its type's prefix and the
// sequence within the financial year.
func FormatNumber(t VoucherType, sequence int64) string {
	if t.Prefix == "" {
		return fmt.Sprintf("%d", sequence)
	}
	return fmt.Sprintf("%s%d", t.Prefix, sequence)
}

// nextSequence picks the sequence for a new voucher: one past the highest
// issued so far, but never below the type's starting number.
func nextSequence(t VoucherType, highest int64) int64 {
	next := highest + 1
	if next < t.StartingNumber {
		next = t.StartingNumber
	}
	return next
}

// normalizeNumber trims a manually supplied voucher number.
func normalizeNumber(number string) string {
	return strings.TrimSpace(number)
}
