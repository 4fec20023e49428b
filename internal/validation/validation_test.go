package validation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone   string
		wantErr bool
	}{
		{phone: "", wantErr: false},
		{phone: "+1234567", wantErr: false},
		{phone: "1234567", wantErr: false},
		{phone: "+233201234567", wantErr: false},
		{phone: "123456789012345", wantErr: false},
		{phone: "123-456-7890", wantErr: false},
		{phone: "+123456", wantErr: true},
		{phone: "1234567890123456", wantErr: true},
		{phone: "++1234567", wantErr: true},
		{phone: "+123-456-7890", wantErr: true},
		{phone: "123-4567-890", wantErr: true},
		{phone: "(123) 456-7890", wantErr: true},
		{phone: "phone", wantErr: true},
		{phone: " 1234567", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidPhone))

			var phoneErr *PhoneError
			require.True(t, errors.As(err, &phoneErr))
			assert.Equal(t, tt.phone, phoneErr.Input)
		})
	}
}

func TestParseMoney_ExactArithmetic(t *testing.T) {
	a, err := ParseMoney("0.10")
	require.NoError(t, err)
	b, err := ParseMoney("0.20")
	require.NoError(t, err)
	c, err := ParseMoney("0.30")
	require.NoError(t, err)

	assert.True(t, a.Add(b).Equal(c), "0.10 + 0.20 must equal 0.30 exactly")
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "19.99", want: "19.99"},
		{raw: " 999.99 ", want: "999.99"},
		{raw: "-5", want: "-5"},
		{raw: "0", want: "0"},
		{raw: "1e2", want: "100"},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "-Infinity", wantErr: true},
		{raw: "inf", wantErr: true},
		{raw: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMoney(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidMoney))
				assert.Equal(t, "Invalid decimal value: "+tt.raw, err.Error())
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseMoneyValue(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{name: "float keeps shortest literal", value: 0.1, want: "0.1"},
		{name: "float price", value: 19.99, want: "19.99"},
		{name: "int", value: 10, want: "10"},
		{name: "json number", value: json.Number("5.50"), want: "5.5"},
		{name: "string", value: "699.99", want: "699.99"},
		{name: "nan", value: math.NaN(), wantErr: true},
		{name: "inf", value: math.Inf(1), wantErr: true},
		{name: "nil", value: nil, wantErr: true},
		{name: "bool", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoneyValue(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidMoney))
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}
