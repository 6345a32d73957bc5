package velox

import "testing"

func TestCompileTagPattern(t *testing.T) {
	cases := []struct {
		pattern string
		tag     string
		match   bool
	}{
		{"user:*", "user:1", true},
		{"user:*", "user:", true},
		{"user:*", "order:1", false},
		{"user:?", "user:1", true},
		{"user:?", "user:12", false},
		{"*", "anything", true},
		{"*", "", true},
		{"exact", "exact", true},
		{"exact", "exact-no", false},
		{"exact", "prefix-exact", false},
		// Regex metacharacters in tags are literal.
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"v(1)", "v(1)", true},
		// Character classes are not supported; '[' is literal.
		{"[ab]", "[ab]", true},
		{"[ab]", "a", false},
		{"t?g*", "tag:main", true},
		{"t?g*", "tg", false},
	}

	for _, tc := range cases {
		re, err := compileTagPattern(tc.pattern)
		if err != nil {
			t.Errorf("compileTagPattern(%q) error: %v", tc.pattern, err)
			continue
		}
		if got := re.MatchString(tc.tag); got != tc.match {
			t.Errorf("pattern %q vs tag %q = %v, want %v", tc.pattern, tc.tag, got, tc.match)
		}
	}
}
