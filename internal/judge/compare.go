package judge

import "strings"

// outputsEquivalent implements the default comparison used when a problem
// has no custom validator: leading/trailing whitespace is trimmed, every
// internal whitespace run collapses to a single space, and the remainder is
// compared case-insensitively.
func outputsEquivalent(got, want []byte) bool {
	return strings.EqualFold(normalizeOutput(got), normalizeOutput(want))
}

func normalizeOutput(b []byte) string {
	return strings.Join(strings.Fields(string(b)), " ")
}
