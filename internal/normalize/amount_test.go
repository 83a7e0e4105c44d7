package normalize

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.234,56", "1234.56", false},
		{"1234.56", "1234.56", false},
		{"650,00", "650", false},
		{"-650,00", "-650", false},
		{"650", "650", false},
		{"650,00 €", "650", false},
		{"1 234,50", "1234.5", false},
		{"EUR 12,5", "12.5", false},
		{"abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseableAmount) {
					t.Errorf("ParseAmount(%q) error = %v, want ErrUnparseableAmount", tt.input, err)
				}
				return
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCellAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		text bool
		want string
	}{
		{"numeric cell", "650.5", false, "650.5"},
		{"german text cell", "1.300,00", true, "1300"},
		{"empty cell", "", false, "0"},
		{"garbage counts as zero", "offen", true, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCellAmount(tt.raw, tt.text)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseCellAmount(%q, %v) = %s, want %s", tt.raw, tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"650", "650,00"},
		{"1234.5", "1234,50"},
		{"-12.345", "-12,35"},
	}

	for _, tt := range tests {
		if got := FormatAmount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
