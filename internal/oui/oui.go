package oui

import "strings"

// DefaultTargetPrefix is the vendor block reported as target devices.
const DefaultTargetPrefix = "00:25:DF"

// PrefixMatcher classifies MAC addresses by their first three octets.
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher creates a matcher for prefix, falling back to DefaultTargetPrefix
// when prefix is not a 3-octet hex value.
func NewPrefixMatcher(prefix string) *PrefixMatcher {
	normalized, ok := parseOctets(prefix, 3)
	if !ok {
		normalized, _ = parseOctets(DefaultTargetPrefix, 3)
	}
	return &PrefixMatcher{prefix: normalized}
}

// Prefix returns the matched prefix in colon notation.
func (m *PrefixMatcher) Prefix() string {
	if m == nil {
		return DefaultTargetPrefix
	}
	return m.prefix[0:2] + ":" + m.prefix[2:4] + ":" + m.prefix[4:6]
}

// IsTarget reports whether mac is a well-formed 6-octet address inside the prefix.
// Malformed input is never an error, just a non-target.
func (m *PrefixMatcher) IsTarget(mac string) bool {
	if m == nil {
		return false
	}
	normalized, ok := parseOctets(mac, 6)
	if !ok {
		return false
	}
	return normalized[:6] == m.prefix
}

// parseOctets accepts n two-digit hex groups joined by one consistent ':' or '-',
// 2n bare hex digits, or for full addresses the dotted 4-digit form. It returns
// the bare upper-case digits.
func parseOctets(v string, n int) (string, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) == 2*n {
		return v, isHex(v)
	}
	var groups []string
	switch {
	case strings.Contains(v, ":"):
		groups = strings.Split(v, ":")
	case strings.Contains(v, "-"):
		groups = strings.Split(v, "-")
	case strings.Contains(v, ".") && n == 6:
		groups = strings.Split(v, ".")
		if len(groups) != 3 {
			return "", false
		}
		for _, g := range groups {
			if len(g) != 4 || !isHex(g) {
				return "", false
			}
		}
		return strings.Join(groups, ""), true
	default:
		return "", false
	}
	if len(groups) != n {
		return "", false
	}
	for _, g := range groups {
		if len(g) != 2 || !isHex(g) {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func isHex(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// NormalizeMAC returns the canonical upper-case colon form of mac, or the trimmed
// upper-case input when it is not a 6-octet hex address.
func NormalizeMAC(mac string) string {
	normalized, ok := parseOctets(mac, 6)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(mac))
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(normalized[i : i+2])
	}
	return b.String()
}

// ValidMAC reports whether mac parses as a 6-octet hex address.
func ValidMAC(mac string) bool {
	_, ok := parseOctets(mac, 6)
	return ok
}
