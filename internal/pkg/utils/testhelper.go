package utils

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// WildcardToRegexp converts a wildcard pattern to a regular expression.
// %s matches any value on one line, %d digits only, %% is a literal percent.
func WildcardToRegexp(pattern string) string {
	result := regexp.QuoteMeta(pattern)
	result = strings.ReplaceAll(result, "%%", "\x00")
	result = strings.ReplaceAll(result, "%s", `[^\n]+`)
	result = strings.ReplaceAll(result, "%d", `\d+`)
	result = strings.ReplaceAll(result, "\x00", "%")
	return result
}

// AssertWildcards checks that the expected block, with wildcards resolved,
// occurs in the actual value. Useful for logs with timing values.
func AssertWildcards(t *testing.T, expected string, actual string, msg string) {
	t.Helper()
	pattern := WildcardToRegexp(strings.TrimSpace(expected))
	if !regexp.MustCompile(pattern).MatchString(actual) {
		assert.Fail(t, msg, fmt.Sprintf("Expected:\n-----\n%s\n-----\nActual:\n-----\n%s\n-----", expected, actual))
	}
}
