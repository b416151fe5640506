package money

import (
	"regexp"
	"strings"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for every amount and balance.
const Scale = 4

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrency trims and upper-cases a currency code and rejects anything
// that is not three ASCII letters.
func NormalizeCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(normalized) {
		return "", errs.ErrInvalidCurrency
	}
	return normalized, nil
}

// ValidateAmount accepts strictly positive amounts representable at Scale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return errs.ErrInvalidAmount
	}
	return nil
}
