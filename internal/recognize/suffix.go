package recognize

import "strings"

// PhoneEntry is one candidate for manual phone-suffix lookup.
type PhoneEntry struct {
	MemberID string `json:"member_id"`
	Phone    string `json:"phone"`
}

// stripNonDigits removes everything but ASCII digits from a phone number.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchByPhoneSuffix filters members to those whose phone number, with all
// non-digit characters stripped, ends with the given digits. The input is
// digit-stripped too, so "4-5678" behaves as "45678". This path never
// touches embeddings: it is the non-biometric identity resolution used
// when enrollment or camera hardware is unavailable.
func MatchByPhoneSuffix(digits string, members []PhoneEntry) []PhoneEntry {
	suffix := stripNonDigits(digits)
	if suffix == "" {
		return nil
	}

	var matches []PhoneEntry
	for _, m := range members {
		if strings.HasSuffix(stripNonDigits(m.Phone), suffix) {
			matches = append(matches, m)
		}
	}
	return matches
}
