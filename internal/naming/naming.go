// Package naming converts identifiers between the casing conventions used by
// schema files, JSON projections and Go source.
package naming

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser is used for converting strings to title case.
var titleCaser = cases.Title(language.English)

// JSONName returns the default JSON name for a schema field name, following
// protoc: underscores are dropped and the letter after each one is upper-cased.
// Other letters keep their case, so "user_ID" becomes "userID".
func JSONName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if upperNext && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upperNext = false
		b.WriteByte(c)
	}
	return b.String()
}

// ToPascalCase converts a string to PascalCase.
func ToPascalCase(s string) string {
	parts := splitName(s)
	for i, p := range parts {
		parts[i] = titleCaser.String(strings.ToLower(p))
	}
	return strings.Join(parts, "")
}

// ToCamelCase converts a string to camelCase.
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if len(pascal) == 0 {
		return ""
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}

// ToSnakeCase converts a string to snake_case.
func ToSnakeCase(s string) string {
	parts := splitName(s)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "_")
}

// ToUpperSnakeCase converts a string to UPPER_SNAKE_CASE.
func ToUpperSnakeCase(s string) string {
	parts := splitName(s)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, "_")
}

// splitName splits a name into parts on underscores, hyphens, dots,
// lower-to-upper case transitions and the end of an upper-case run, so
// "HTTPServer" splits into "HTTP" and "Server" while "BlockIDs" splits into
// "Block" and "IDs".
func splitName(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	var current strings.Builder
	runes := []rune(s)

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == '.' {
			flush()
			continue
		}

		if i > 0 && isUpper(r) {
			prev := runes[i-1]
			switch {
			case isLower(prev) || isDigit(prev):
				flush()
			case isUpper(prev) && i+1 < len(runes) && isLower(runes[i+1]) && !pluralAcronym(runes, i):
				flush()
			}
		}

		current.WriteRune(r)
	}
	flush()

	return parts
}

// pluralAcronym reports whether runes[i:] is the "s" ending a plural
// acronym such as "IDs".
func pluralAcronym(runes []rune, i int) bool {
	if runes[i+1] != 's' {
		return false
	}
	return i+2 == len(runes) || !isLower(runes[i+2])
}

func isLower(r rune) bool {
	return r >= 'a' && r <= 'z'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
