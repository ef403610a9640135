// Package validate implements the declarative validation layer of
// spec §4.9: string length caps, the raw-amount and hex-shape regexes,
// and the size caps recomputed after JSON parsing.
package validate

import (
	"regexp"
	"unicode/utf8"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
)

var (
	rawAmountPattern = regexp.MustCompile(`^[0-9]+$`)
	hexLowerPattern  = regexp.MustCompile(`^[0-9a-f]+$`)
)

// Issues collects per-field validation problems for a validation_error response.
type Issues map[string]string

// Add records a field issue and returns the map for chaining.
func (i Issues) Add(field, msg string) Issues {
	i[field] = msg
	return i
}

// Err converts non-empty Issues into a validation_error *apierr.Error, or
// nil if there are no issues.
func (i Issues) Err() *apierr.Error {
	if len(i) == 0 {
		return nil
	}
	return apierr.New(apierr.CodeValidation, "request failed validation").WithDetails(i)
}

// RawAmount reports whether s is a non-empty decimal-integer string, the
// shape required for quote_amount_raw / fixed_price_raw.
func RawAmount(s string) bool {
	return s != "" && len(s) <= 40 && rawAmountPattern.MatchString(s)
}

// HexLower reports whether s is exactly n lowercase hex characters.
func HexLower(s string, n int) bool {
	return len(s) == n && hexLowerPattern.MatchString(s)
}

// HexLowerRange reports whether s is between min and max lowercase hex
// characters inclusive, the shape used for the nonce header.
func HexLowerRange(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max && hexLowerPattern.MatchString(s)
}

// RuneLen returns the UTF-8 rune count, used for human-facing length caps
// like title/description (as opposed to byte-size caps on serialized JSON).
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ByteLen returns the UTF-8 byte length of s, used for size caps that must
// be recomputed on the serialized JSON value per spec §4.9.
func ByteLen(s string) int {
	return len(s)
}
