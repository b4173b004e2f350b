package limiters

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentityLength is the longest accepted identity, in runes, after normalization.
const MaxIdentityLength = 254

// NormalizeIdentity returns the canonical form of an account identifier:
// trimmed, NFKC-normalized and case-folded. ok is false for empty, overlong or
// non-printable input.
func NormalizeIdentity(raw string) (string, bool) {
	if !utf8.ValidString(raw) {
		return "", false
	}

	s := strings.TrimSpace(raw)
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.TrimSpace(s)

	if s == "" || utf8.RuneCountInString(s) > MaxIdentityLength {
		return "", false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return s, true
}
