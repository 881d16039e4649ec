package synchronizer

import (
	"regexp"
	"strings"
)

const tabPatternHead = "*://*"

// TabPattern returns the match pattern for tabs affected by entry: any
// scheme, any host containing entry, any path.
func TabPattern(entry string) string {
	return tabPatternHead + entry + "*/*"
}

// compileTabPattern compiles TabPattern(entry) into a case-insensitive
// regexp. Only the pattern's own '*' act as wildcards; every character of
// entry, '*' included, matches literally.
func compileTabPattern(entry string) (*regexp.Regexp, error) {
	p := TabPattern(entry)
	head := p[:len(tabPatternHead)]
	tail := p[len(tabPatternHead)+len(entry):]

	var b strings.Builder
	b.WriteString("(?i)")
	b.WriteString(globToRegexp(head))
	b.WriteString(regexp.QuoteMeta(entry))
	b.WriteString(globToRegexp(tail))
	return regexp.Compile(b.String())
}

// globToRegexp translates a glob where '*' is the only wildcard.
func globToRegexp(glob string) string {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, ".*")
}
