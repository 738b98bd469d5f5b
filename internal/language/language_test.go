package language

import (
	"slices"
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"spa", "es"},
		{"fra", "fr"},
		{"fre", "fr"},
		{"deu", "de"},
		{"ger", "de"},
		{"zho", "zh"},
		{"chi", "zh"},
		{"heb", "he"},
		{"cym", "cy"},
		{"wel", "cy"},
		// no two-letter code
		{"yue", ""},
		{"english", "en"},
		{"French", "fr"},
		{"xy", "xy"},
		{"xyz", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ToISO2(tt.input); result != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToISO3(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "eng"},
		{"eng", "eng"},
		{"ENG", "eng"},
		{"fre", "fra"},
		{"ger", "deu"},
		{"dut", "nld"},
		{"gre", "ell"},
		{"cantonese", "yue"},
		{"he", "heb"},
		{"xyz", "xyz"},
		{"xy", "und"},
		{"", "und"},
		{"english", "eng"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ToISO3(tt.input); result != tt.expected {
				t.Errorf("ToISO3(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"eng", "English"},
		{"yue", "Cantonese"},
		{"nld", "Dutch"},
		{"", "Unknown"},
		{"xyz", "XYZ"},
	}
	for _, tt := range tests {
		if result := DisplayName(tt.input); result != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestPrimary(t *testing.T) {
	if got := Primary([]string{"", "xy", "spa", "eng"}, "eng"); got != "spa" {
		t.Fatalf("Primary = %q, want spa", got)
	}
	if got := Primary(nil, "eng"); got != "eng" {
		t.Fatalf("Primary fallback = %q", got)
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"eng", "en", " Spanish ", "xy", "fre", "fra"})
	want := []string{"eng", "spa", "fra"}
	if !slices.Equal(got, want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	if NormalizeList(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
