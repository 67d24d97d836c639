// ABOUTME: Free-text name parsing into (given, family) pairs
// ABOUTME: Handles "Given Family", "Family, Given" and single-token names
package normalize

import "strings"

// SplitName parses a free-text display name into given and family parts.
// "Family, Given" comma form is recognized; otherwise the first token is the
// given name and the remainder the family name. A single token yields an
// empty family name.
func SplitName(full string) (given, family string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	if i := strings.Index(full, ","); i >= 0 {
		family = strings.TrimSpace(full[:i])
		given = strings.TrimSpace(full[i+1:])
		return given, family
	}

	fields := strings.Fields(full)
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
