package httpapi

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

// maskToken keeps the first and last four characters of a token for logs.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if masked, err := masker.Default.String("preserveEnds(4,4)", token); err == nil {
		return masked
	}
	runes := []rune(token)
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("*", len(runes)-8) + string(runes[len(runes)-4:])
}
