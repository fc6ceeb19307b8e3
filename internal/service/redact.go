package service

import "regexp"

// Phone-number-shaped: an optional +, then at least eight digits possibly
// separated by spaces or dashes. Matches both E.164 and national formats.
var phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{6,}\d`)

// RedactPhoneNumbers removes phone-number-shaped substrings from provider
// error text before it is stored, so recipient numbers never end up in
// operator-visible error messages.
func RedactPhoneNumbers(s string) string {
	return phonePattern.ReplaceAllString(s, "[redacted]")
}
