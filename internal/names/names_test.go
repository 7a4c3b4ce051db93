package names

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "Екатерина", "екатерина"},
		{"trim and collapse", "  Daria   M.  ", "daria m."},
		{"mixed script", "Мария Ivanova", "мария ivanova"},
		{"punctuation dropped", "O'Brien, Anna", "obrien anna"},
		{"hyphen kept", "Анна-Мария", "анна-мария"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"екатерина", "ekaterina"},
		{"дарья", "daria"},
		{"алексей", "aleksey"},
		{"женя", "zhenia"},
		{"щукина", "shchukina"},
		{"объём", "obem"},
		{"sofia", "sofia"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Transliterate(tt.input); got != tt.expected {
				t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"véra", "vera"},
		{"françois", "francois"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := StripDiacritics(tt.input); got != tt.expected {
			t.Errorf("StripDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"cyrillic", "Екатерина", "ekaterina"},
		{"latin", "Ekaterina", "ekaterina"},
		{"with initial", "Дарья М.", "daria m."},
		{"accented latin", "Véra", "vera"},
		{"full cyrillic name", "Мария Петрова", "mariia petrova"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.expected {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalConverges(t *testing.T) {
	// The same person in Cyrillic and Latin must land on one canonical form
	pairs := [][2]string{
		{"Екатерина", "Ekaterina"},
		{"Дарья", "Daria"},
		{"София", "Sofiia"},
	}

	for _, pair := range pairs {
		a, b := Canonical(pair[0]), Canonical(pair[1])
		if a != b {
			t.Errorf("Canonical(%q) = %q, Canonical(%q) = %q: want equal",
				pair[0], a, pair[1], b)
		}
	}
}

func TestPrimaryToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single name", "Екатерина", "ekaterina"},
		{"name with initial", "Daria M.", "daria"},
		{"initial first", "M. Daria", "daria"},
		{"two full names", "Мария Петрова", "mariia"},
		{"only initial", "M.", "m"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryToken(tt.input); got != tt.expected {
				t.Errorf("PrimaryToken(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Дарья М.")
	want := []string{"daria", "m"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}

	if len(Tokens("")) != 0 {
		t.Error("expected no tokens for empty input")
	}
}
