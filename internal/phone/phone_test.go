package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+1 (415) 555-0100", "+14155550100"},
		{"415.555.0100", "4155550100"},
		{"  +44 20 7946 0958 ", "+442079460958"},
		{"no digits here", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+1 (415) 555-0100", "555-0100", "", "++--12"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"+1 (415) 555-0100", "4155550100", true},
		{"4155550100", "+1 (415) 555-0100", true},
		{"+14155550100", "+14155550100", true},
		{"555-0100", "555-0199", false},
		{"555-0100", "555-0100", true},
		{"", "", true},
		{"", "4155550100", false},
		{"+861350000111122", "0000111122", true},
	}
	for _, tc := range cases {
		if got := Matches(tc.a, tc.b); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMatchesShortNumbersExactOnly(t *testing.T) {
	// Suffix comparison is disabled below ten digits.
	if Matches("0100", "5550100") {
		t.Error("short numbers must not match on suffix")
	}
	if !Matches("0100", "0100") {
		t.Error("short numbers must still match exactly")
	}
}
