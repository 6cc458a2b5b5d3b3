package pipeline

import (
	"regexp"
	"strings"
)

// Replacement markers for redacted PII.
const (
	emailMarker   = "[EMAIL_REDACTED]"
	cardMarker    = "[CARD_REDACTED]"
	ssnMarker     = "[SSN_REDACTED]"
	phoneMarker   = "[PHONE_REDACTED]"
	addressMarker = "[ADDRESS_REDACTED]"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Candidate card numbers: 13-19 digits, optionally separated by spaces or
	// dashes. Candidates must additionally pass a Luhn check before being
	// redacted, so arbitrary long numbers survive.
	cardRe = regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)

	ssnRe = regexp.MustCompile(`\b(\d{3})-(\d{2})-(\d{4})\b`)

	// US formats with separators plus a loose international form.
	phoneRe = regexp.MustCompile(`(?:\+?1[\-. ]?)?\(\d{3}\)[\-. ]?\d{3}[\-. ]\d{4}\b` +
		`|\b(?:1[\-. ]?)?\d{3}[\-. ]\d{3}[\-. ]\d{4}\b` +
		`|\+\d{7,15}\b`)

	addressRe = regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Z][A-Za-z]*\.?\s+){1,4}` +
		`(?:Street|St|Avenue|Ave|Boulevard|Blvd|Drive|Dr|Lane|Ln|Road|Rd|Court|Ct|Circle|Cir|Way|Place|Pl|Terrace|Ter|Parkway|Pkwy|Highway|Hwy)\b\.?` +
		`(?:,?\s+(?:Apt|Apartment|Suite|Ste|Unit|#)\.?\s*\w+)?`)
)

// itinGroup reports whether a two-digit group number belongs to the ITIN
// allocation (70-88, 90-92, 94-99).
func itinGroup(group string) bool {
	n := int(group[0]-'0')*10 + int(group[1]-'0')
	switch {
	case n >= 70 && n <= 88:
		return true
	case n >= 90 && n <= 92:
		return true
	case n >= 94 && n <= 99:
		return true
	}
	return false
}

// luhnValid reports whether digits passes the Luhn checksum.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Redact replaces PII matches in s and reports whether anything was
// replaced. The input is never modified; strings are immutable anyway, but
// the same holds for the container walk in RedactValue.
func Redact(s string) (string, bool) {
	redacted := false

	out := emailRe.ReplaceAllStringFunc(s, func(string) string {
		redacted = true
		return emailMarker
	})

	out = cardRe.ReplaceAllStringFunc(out, func(m string) string {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if len(digits) < 13 || len(digits) > 19 || !luhnValid(digits) {
			return m
		}
		redacted = true
		return cardMarker
	})

	out = ssnRe.ReplaceAllStringFunc(out, func(m string) string {
		area := m[:3]
		// 000 and 666 are never issued. A 9xx area is not a valid SSN; it
		// is redacted only when the group digits fall in the ITIN ranges.
		if area == "000" || area == "666" {
			return m
		}
		if area[0] == '9' && !itinGroup(m[4:6]) {
			return m
		}
		redacted = true
		return ssnMarker
	})

	out = phoneRe.ReplaceAllStringFunc(out, func(string) string {
		redacted = true
		return phoneMarker
	})

	out = addressRe.ReplaceAllStringFunc(out, func(string) string {
		redacted = true
		return addressMarker
	})

	return out, redacted
}

// RedactValue recursively redacts every string inside v, including strings
// nested in maps and slices, returning a new value. Non-string scalars are
// returned unchanged.
func RedactValue(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return Redact(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		changed := false
		for k, val := range x {
			r, hit := RedactValue(val)
			out[k] = r
			changed = changed || hit
		}
		return out, changed
	case []any:
		out := make([]any, len(x))
		changed := false
		for i, val := range x {
			r, hit := RedactValue(val)
			out[i] = r
			changed = changed || hit
		}
		return out, changed
	default:
		return v, false
	}
}
