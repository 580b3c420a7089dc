package validator

import "testing"

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"uppercase passthrough", "USD", "USD", false},
		{"lowercase normalized", "uzs", "UZS", false},
		{"surrounding whitespace", " eur ", "EUR", false},
		{"unknown code", "XXX", "", true},
		{"too short", "US", "", true},
		{"too long", "USDT", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCurrency(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeCurrency(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizeCurrency(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsSupportedCurrency(t *testing.T) {
	if !IsSupportedCurrency("usd") {
		t.Error("usd should be supported")
	}
	if IsSupportedCurrency("BTC") {
		t.Error("BTC should not be supported")
	}
}
