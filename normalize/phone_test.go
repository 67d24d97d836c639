// ABOUTME: Tests for phone canonicalization and country prefix extraction
// ABOUTME: Covers the French trunk rewrite, international passthrough, and rejects
package normalize

import (
	"testing"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "french mobile trunk form",
			input: "0612345678",
			want:  "+33612345678",
		},
		{
			name:  "french landline trunk form",
			input: "0123456789",
			want:  "+33123456789",
		},
		{
			name:  "french with separators",
			input: "06 12 34 56 78",
			want:  "+33612345678",
		},
		{
			name:  "international us number keeps prefix",
			input: "+1 (415) 555-2671",
			want:  "+14155552671",
		},
		{
			name:  "already normalized",
			input: "+33612345678",
			want:  "+33612345678",
		},
		{
			name:  "repeated plus collapsed",
			input: "++33612345678",
			want:  "+33612345678",
		},
		{
			name:  "plus in the middle dropped",
			input: "+33+612345678",
			want:  "+33612345678",
		},
		{
			name:    "too short",
			input:   "12345",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "letters only",
			input:   "call me",
			wantErr: true,
		},
		{
			name:  "ten digits not trunk prefixed stays as-is",
			input: "9912345678",
			want:  "9912345678",
		},
		{
			name:  "eleven digits no plus stays as-is",
			input: "33612345678",
			want:  "33612345678",
		},
		{
			name:  "zero zero prefix is not a trunk form",
			input: "0012345678",
			want:  "0012345678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Phone(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Phone(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Phone(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhoneDeterministic(t *testing.T) {
	inputs := []string{"0612345678", "+1 (415) 555-2671", "06.12.34.56.78"}
	for _, in := range inputs {
		a, errA := Phone(in)
		b, errB := Phone(in)
		if a != b || (errA == nil) != (errB == nil) {
			t.Errorf("Phone(%q) not deterministic: %q vs %q", in, a, b)
		}
	}
}

func TestCountryPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+33612345678", "+33"},
		{"+14155552671", "+1"},
		{"+79161234567", "+7"},
		{"+212612345678", "+212"},
		{"+4915112345678", "+49"},
		{"9912345678", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CountryPrefix(tt.input); got != tt.want {
			t.Errorf("CountryPrefix(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		input, given, family string
	}{
		{"Jean Dupont", "Jean", "Dupont"},
		{"Dupont, Jean", "Jean", "Dupont"},
		{"Jean", "Jean", ""},
		{"  Marie  Claire   Renaud ", "Marie", "Claire Renaud"},
		{"", "", ""},
	}

	for _, tt := range tests {
		given, family := SplitName(tt.input)
		if given != tt.given || family != tt.family {
			t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)",
				tt.input, given, family, tt.given, tt.family)
		}
	}
}
