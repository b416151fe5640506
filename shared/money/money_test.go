package money

import (
	"testing"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"usd", "USD", false},
		{"  eur ", "EUR", false},
		{"GBP", "GBP", false},
		{"US", "", true},
		{"USDT", "", true},
		{"U5D", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeCurrency(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, errs.ErrInvalidCurrency, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateAmount(t *testing.T) {
	valid := []string{"1", "0.0001", "40", "1000000.1234"}
	for _, s := range valid {
		assert.NoError(t, ValidateAmount(decimal.RequireFromString(s)), s)
	}
	invalid := []string{"0", "-5", "0.00001", "10.12345"}
	for _, s := range invalid {
		assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString(s)), errs.ErrInvalidAmount, s)
	}
}
