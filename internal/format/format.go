package format

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidPrice is returned for prices that cannot be displayed: negative, NaN or infinite.
var ErrInvalidPrice = errors.New("format: invalid price")

// Name upper-cases the first character of name and leaves the rest untouched.
// Example: Name("bottle") => "Bottle"
func Name(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError && size <= 1 {
		return name
	}
	// cases.Upper handles expansions such as "ß" => "SS".
	return cases.Upper(language.Und).String(string(r)) + name[size:]
}

// MinorUnits converts a price in major units to cents, rounding half away from zero.
func MinorUnits(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	minor := math.Round(price * 100)
	if minor >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidPrice, price)
	}
	return int64(minor), nil
}

// Price formats a price with a dollar sign and two decimals, without grouping.
// Example: Price(7.5) => "$7.50"
func Price(price float64) (string, error) {
	minor, err := MinorUnits(price)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$%d.%02d", minor/100, minor%100), nil
}

// Date formats time in a locale-friendly short form.
func Date(t time.Time, lang string) string {
	switch strings.ToLower(lang) {
	case "ja":
		return t.Format("2006-01-02")
	default:
		return t.Format("Jan 2, 2006")
	}
}
