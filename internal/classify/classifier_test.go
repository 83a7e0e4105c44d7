package classify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
)

func TestClassify_EmbeddedRules(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		text        string
		wantLabel   domain.Label
		wantKeyword string
	}{
		{"Miete März Girokonto", domain.LabelRent, "Miete"},
		{"MIETZAHLUNG Whg 3", domain.LabelRent, "MIETZAHLUNG"},
		{"KM 04/2024", domain.LabelRent, "KM"},
		{"Stellplatz 12", domain.LabelRent, "Stellplatz"},
		{"Abschlag Nebenkosten", domain.LabelUtilitiesAdvance, "Nebenkosten"},
		{"BK Vorauszahlung", domain.LabelUtilitiesAdvance, "BK"},
		{"Heizkosten 2023", domain.LabelUtilitiesAdvance, "Heizkosten"},
		{"Nach-Zahlung 2023", domain.LabelArrearsPayment, "Nach-Zahlung"},
		{"Nachzahlung NK", domain.LabelUtilitiesAdvance, "NK"},
		{"Ratenzahlung 3/10", domain.LabelInstallment, "Ratenzahlung"},
		{"Honorar Verwaltung", domain.LabelFee, "Honorar"},
		{"Miete und Nebenkosten", domain.LabelRent, "Miete"},
		{"Lastschrift Strom", domain.LabelOther, "Sonstiges"},
		{"Kilometerpauschale", domain.LabelOther, "Sonstiges"},
		{"Mietrückstand Februar", domain.LabelRent, "Mietrückstand"},
		{"Überweisung Miete", domain.LabelRent, "Miete"},
		{"Kmü Abschlag", domain.LabelOther, "Sonstiges"},
		{"Zahlung August", domain.LabelOther, "Sonstiges"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			label, keyword := c.Classify(tt.text)
			if label != tt.wantLabel {
				t.Errorf("Classify(%q) label = %q, want %q", tt.text, label, tt.wantLabel)
			}
			if keyword != tt.wantKeyword {
				t.Errorf("Classify(%q) keyword = %q, want %q", tt.text, keyword, tt.wantKeyword)
			}
		})
	}
}

func TestApply(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tx := &domain.Transaction{Memo: "Miete August", Object: "Girokonto"}
	c.Apply(tx)

	if tx.Label != domain.LabelRent || !Relevant(tx) {
		t.Errorf("Apply() label = %q, relevant = %v", tx.Label, Relevant(tx))
	}
	if tx.MonthOverride != time.August {
		t.Errorf("Apply() override = %v, want August", tx.MonthOverride)
	}
	if domain.MonthIndex(tx.MonthOverride) != 7 {
		t.Errorf("MonthIndex(override) = %d, want 7", domain.MonthIndex(tx.MonthOverride))
	}

	other := &domain.Transaction{Memo: "Einkauf", Object: "Mietkonto Jan"}
	c.Apply(other)
	if other.Label != domain.LabelRent {
		t.Errorf("object name must take part in classification, got %q", other.Label)
	}
	if other.MonthOverride != 0 {
		t.Errorf("object name must not produce a month override, got %v", other.MonthOverride)
	}
}

func TestRelevant(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		name string
		memo string
		want bool
	}{
		{"relevant label", "Miete", true},
		{"other label with month", "Zahlung August", true},
		{"other label with abbreviated month", "Überweisung Okt", true},
		{"other label without month", "Lastschrift Strom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &domain.Transaction{Memo: tt.memo}
			c.Apply(tx)
			if got := Relevant(tx); got != tt.want {
				t.Errorf("Relevant(%q) = %v, want %v (label %q, override %v)", tt.memo, got, tt.want, tx.Label, tx.MonthOverride)
			}
		})
	}
}

func TestMonthOverride(t *testing.T) {
	tests := []struct {
		text string
		want time.Month
	}{
		{"Miete März", time.March},
		{"MIETE MÄRZ 2024", time.March},
		{"Miete Mrz", time.March},
		{"NK Sept.", time.September},
		{"Rate Dez/Jan", time.December},
		{"Miete 05/2024", 0},
		{"Maier Miete", 0},
		{"Januarrate", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := MonthOverride(tt.text); got != tt.want {
				t.Errorf("MonthOverride(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "rules: []"},
		{"unknown label", "rules:\n  - label: groceries\n    patterns: ['x']"},
		{"other is not a rule label", "rules:\n  - label: other\n    patterns: ['x']"},
		{"no patterns", "rules:\n  - label: rent\n    patterns: []"},
		{"bad regex", "rules:\n  - label: rent\n    patterns: ['(']"},
		{"broken yaml", "rules: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New([]byte(tt.yaml)); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := "rules:\n  - label: fee\n    patterns: ['\\bverwaltung\\b']\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if label, kw := c.Classify("Verwaltung Q1"); label != domain.LabelFee || kw != "Verwaltung" {
		t.Errorf("Classify() = %q, %q", label, kw)
	}
	if label, _ := c.Classify("Miete"); label != domain.LabelOther {
		t.Errorf("file rules must replace the embedded ones, got %q", label)
	}
}
