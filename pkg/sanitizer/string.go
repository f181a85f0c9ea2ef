package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeLocation keeps case: "Downtown" and "downtown" are distinct
// locations in the catalog and in booking requests alike.
func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}

// NormalizeNumber canonicalizes a fleet registration number so that
// "ka 01 ab 1234" and "KA01AB1234" dedupe to the same vehicle.
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(number) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
