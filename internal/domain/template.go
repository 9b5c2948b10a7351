package domain

import "strings"

// RenderTemplate substitutes placeholder tokens in a message template.
// Substitution is a single pass: each occurrence of a token is replaced
// exactly once with its value, and values are never re-scanned for
// tokens. Tokens without a matching entry in vars pass through
// unchanged.
func RenderTemplate(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for token, value := range vars {
		pairs = append(pairs, token, value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
