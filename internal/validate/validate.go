package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reURL   = regexp.MustCompile(`^https?://[^\s]+$`)
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Name validates a required display name.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 200 {
		return "", false
	}
	return s, true
}

// Text trims free text and caps its length. Empty is allowed.
func Text(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) <= 2000
}

// ID validates a resource identifier (uuid or sequence id).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func URL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) <= 2048 && reURL.MatchString(s)
}

const MaxQueryLen = 50

// Q trims a search term and rejects one longer than MaxQueryLen runes.
// Empty means no filter.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) <= MaxQueryLen
}

// Cents converts a decimal currency amount to minor units. Amounts must be
// non-negative with at most two decimal places.
func Cents(d decimal.Decimal) (int64, bool) {
	if d.IsNegative() {
		return 0, false
	}
	if !d.Equal(d.Truncate(2)) {
		return 0, false
	}
	c := d.Shift(2)
	if !c.IsInteger() || c.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, false
	}
	return c.IntPart(), true
}

// Amount renders minor units as a two-place decimal string.
func Amount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
