package employee

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	uidSuffixLen = 6
	fallbackSlug = "employee"
)

// Slug derives the public identifier lower(first)-lower(last). Anything that
// is not a letter, digit or combining mark becomes a dash, and dash runs
// collapse, so the result is always a single safe path segment. Parts that
// reduce to nothing are skipped.
func Slug(firstName, lastName string) string {
	var parts []string
	for _, s := range []string{firstName, lastName} {
		if p := slugPart(s); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fallbackSlug
	}
	return strings.Join(parts, "-")
}

// HasSlugPart reports whether name contributes anything to a slug.
func HasSlugPart(name string) bool {
	return slugPart(name) != ""
}

// DisambiguatedSlug appends a short uid-derived suffix to base. It is used when
// base is already published for a different employee.
func DisambiguatedSlug(base, uid string) string {
	suffix := slugPart(uid)
	if r := []rune(suffix); len(r) > uidSuffixLen {
		suffix = string(r[len(r)-uidSuffixLen:])
	}
	suffix = strings.Trim(suffix, "-")
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func slugPart(s string) string {
	// Casers keep state, so each call gets its own.
	lower := cases.Lower(language.Und).String(s)
	var b strings.Builder
	dash := false
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
