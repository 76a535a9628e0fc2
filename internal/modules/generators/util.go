package generators

import "strings"

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
