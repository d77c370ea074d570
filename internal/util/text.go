package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reHeaderNo = regexp.MustCompile(`[^a-z0-9]+`)
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(input, "\u00A0", " "), " "))
}

// HeaderKey folds a column header to lowercase alphanumerics so "Base Price",
// "base_price" and "BASE-PRICE" compare equal.
func HeaderKey(input string) string {
	return reHeaderNo.ReplaceAllString(strings.ToLower(input), "")
}

// SanitizeFileName makes a message id or quote number safe for a file path.
func SanitizeFileName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(strings.TrimSpace(input))
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

// ShortID is the human readable quote number: first 8 characters, uppercased.
func ShortID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return strings.ToUpper(compact)
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
