// Package phone normalizes and compares phone-number strings.
//
// Normalized forms are used only for comparison; callers always display
// the raw strings they received from the contact store or the chat list.
package phone

import "strings"

// suffixLen is the number of trailing digits compared when two normalized
// numbers differ only by a country-code prefix (e.g. "+14155550100" vs
// "4155550100"). Numbers shorter than this match only exactly, so short or
// empty strings never collide through the suffix path.
const suffixLen = 10

// Normalize strips every character except ASCII digits and '+'.
// It is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || c == '+' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Matches reports whether two raw phone strings identify the same number.
// Both sides are normalized; they match when exactly equal, or when the
// last suffixLen characters of either form equal the other's suffix.
func Matches(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == nb {
		return true
	}
	if len(na) < suffixLen || len(nb) < suffixLen {
		return false
	}
	return strings.HasSuffix(na, nb[len(nb)-suffixLen:]) ||
		strings.HasSuffix(nb, na[len(na)-suffixLen:])
}
