package search

// A query is treated as a phone number when its digits-only form has a
// plausible length for a subscriber number with or without country code.
const (
	phoneMinDigits = 9
	phoneMaxDigits = 15
)

// PhoneCandidate reports whether the raw query looks like a phone number,
// returning its digits-only form when it does.
func PhoneCandidate(raw string) (string, bool) {
	digits := stripNonDigits(raw)
	if len(digits) < phoneMinDigits || len(digits) > phoneMaxDigits {
		return "", false
	}
	return digits, true
}
