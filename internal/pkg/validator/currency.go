package validator

import (
	"errors"
	"strings"
)

var supportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CHF": true, "CAD": true, "AUD": true, "NZD": true,
	"SEK": true, "NOK": true, "DKK": true, "PLN": true,
	"CZK": true, "HUF": true, "RON": true, "BGN": true,
	"TRY": true, "RUB": true, "UZS": true, "KZT": true,
	"AED": true, "SAR": true, "INR": true, "CNY": true,
	"HKD": true, "SGD": true, "KRW": true, "THB": true,
	"MYR": true, "IDR": true, "PHP": true, "VND": true,
	"BRL": true, "MXN": true, "ARS": true, "CLP": true,
	"COP": true, "PEN": true, "ZAR": true, "NGN": true,
	"EGP": true, "KES": true, "GHS": true, "ILS": true,
}

// NormalizeCurrency upper-cases and validates an ISO-4217 code.
func NormalizeCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != 3 {
		return "", errors.New("currency must be a 3-letter ISO code")
	}
	if !supportedCurrencies[normalized] {
		return "", errors.New("unsupported currency: " + normalized)
	}
	return normalized, nil
}

func IsSupportedCurrency(code string) bool {
	_, err := NormalizeCurrency(code)
	return err == nil
}
