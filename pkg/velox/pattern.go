package velox

import (
	"regexp"
	"strings"
)

// compileTagPattern converts a glob over tag names into an anchored
// regular expression. '*' matches any run of characters, '?' matches a
// single character, and everything else — including '[' — is literal.
func compileTagPattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}
