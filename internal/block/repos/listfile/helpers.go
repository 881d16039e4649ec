package listfile

import (
	"strings"
	"unicode"
)

func stripLineBOM(s string) string { return strings.TrimPrefix(s, "\uFEFF") }

// classifyLine reports blank lines and whole-line comments.
func classifyLine(line string) (isEmpty, isComment bool) {
	t := strings.TrimSpace(line)
	if t == "" {
		return true, false
	}
	return false, strings.HasPrefix(t, "#")
}

func stripInlineComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func normalizeSite(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// isValidSite accepts what the rule engine takes as a URL filter:
// non-empty printable ASCII without whitespace.
func isValidSite(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c > unicode.MaxASCII || unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	return true
}

// isValidHostname requires at least two labels of 1 to 63 characters,
// at most 253 characters in total, and a letter or digit first.
func isValidHostname(name string) bool {
	if len(name) > 253 || !isValidSite(name) {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if len(l) == 0 || len(l) > 63 {
			return false
		}
	}
	r := rune(name[0])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
