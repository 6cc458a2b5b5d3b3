package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	out, hit := Redact("contact a@b.com for details")
	assert.True(t, hit)
	assert.Contains(t, out, "[EMAIL_REDACTED]")
	assert.NotContains(t, out, "@")
}

func TestRedactCardLuhnValid(t *testing.T) {
	// 4111111111111111 passes Luhn.
	for _, s := range []string{
		"card 4111111111111111 on file",
		"card 4111-1111-1111-1111 on file",
		"card 4111 1111 1111 1111 on file",
	} {
		out, hit := Redact(s)
		assert.True(t, hit, s)
		assert.Contains(t, out, "[CARD_REDACTED]")
		assert.NotContains(t, out, "4111")
	}
}

func TestRedactCardLuhnInvalidUntouched(t *testing.T) {
	// 16 digits failing the Luhn check stay as-is.
	in := "order number 1234567890123456"
	out, hit := Redact(in)
	assert.False(t, hit)
	assert.Equal(t, in, out)
}

func TestRedactSSN(t *testing.T) {
	out, hit := Redact("ssn 123-45-6789")
	assert.True(t, hit)
	assert.Contains(t, out, "[SSN_REDACTED]")
}

func TestRedactSSNInvalidAreasUntouched(t *testing.T) {
	for _, in := range []string{
		"ref 000-12-3456",
		"ref 666-12-3456",
	} {
		out, hit := Redact(in)
		assert.False(t, hit, in)
		assert.Equal(t, in, out)
	}
}

func TestRedactITINRange(t *testing.T) {
	// 9xx areas are redacted only when the group digits fall in the ITIN
	// allocation.
	for _, in := range []string{
		"itin 912-78-1234", // group 70-88
		"itin 912-91-1234", // group 90-92
		"itin 912-95-1234", // group 94-99
	} {
		out, hit := Redact(in)
		assert.True(t, hit, in)
		assert.Contains(t, out, "[SSN_REDACTED]", in)
	}
}

func TestRedactNonITIN9xxUntouched(t *testing.T) {
	for _, in := range []string{
		"ref 900-00-3456",
		"ref 955-89-3456",
		"ref 999-93-3456",
	} {
		out, hit := Redact(in)
		assert.False(t, hit, in)
		assert.Equal(t, in, out, in)
	}
}

func TestRedactPhone(t *testing.T) {
	for _, in := range []string{
		"call 555-123-4567",
		"call (555) 123-4567",
		"call +1 555.123.4567",
		"call +442071838750",
	} {
		out, hit := Redact(in)
		assert.True(t, hit, in)
		assert.Contains(t, out, "[PHONE_REDACTED]", in)
	}
}

func TestRedactAddress(t *testing.T) {
	for _, in := range []string{
		"ships to 123 Main Street",
		"ships to 4821 North Elm Ave, Apt 4B",
	} {
		out, hit := Redact(in)
		assert.True(t, hit, in)
		assert.Contains(t, out, "[ADDRESS_REDACTED]", in)
	}
}

func TestRedactCleanStringUntouched(t *testing.T) {
	in := "checkout completed in 42ms with status ok"
	out, hit := Redact(in)
	assert.False(t, hit)
	assert.Equal(t, in, out)
}

func TestRedactValueNested(t *testing.T) {
	in := map[string]any{
		"note":  "mail a@b.com",
		"count": float64(3),
		"inner": map[string]any{
			"list": []any{"ssn 123-45-6789", float64(1)},
		},
	}

	out, hit := RedactValue(in)
	require.True(t, hit)

	m := out.(map[string]any)
	assert.Contains(t, m["note"], "[EMAIL_REDACTED]")
	assert.Equal(t, float64(3), m["count"])
	inner := m["inner"].(map[string]any)
	list := inner["list"].([]any)
	assert.Contains(t, list[0], "[SSN_REDACTED]")

	// Copy-on-write: the input containers are untouched.
	assert.Equal(t, "mail a@b.com", in["note"])
	assert.True(t, strings.Contains(in["inner"].(map[string]any)["list"].([]any)[0].(string), "123-45-6789"))
}
