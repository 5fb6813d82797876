package dispatch

import "strings"

// DefaultAddressSuffix is the chat domain appended to normalized numbers.
const DefaultAddressSuffix = "@c.us"

// NormalizeAddress strips every non-digit from raw and appends suffix.
// It fails when raw carries no digits at all.
func NormalizeAddress(raw, suffix string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw) + len(suffix))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "", invalid("recipient %q has no digits", raw)
	}
	if suffix == "" {
		suffix = DefaultAddressSuffix
	}
	if !strings.HasPrefix(suffix, "@") {
		b.WriteByte('@')
	}
	b.WriteString(suffix)
	return b.String(), nil
}
