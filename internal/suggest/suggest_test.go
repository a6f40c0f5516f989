package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForContextTag_MatchesKnownPrefixes(t *testing.T) {
	assert.Contains(t, ForContextTag("ssti:django"), "template injection")
	assert.Contains(t, ForContextTag("sqli"), "SQL injection")
	assert.Contains(t, ForContextTag("xss:html"), "HTML")
	assert.Contains(t, ForContextTag("xss:js"), "script")
	assert.Contains(t, ForContextTag("xss"), "XSS")
	assert.Contains(t, ForContextTag("header:x-forwarded-host"), "header")
}

func TestForContextTag_UnknownTagGetsGenericFallback(t *testing.T) {
	got := ForContextTag("something-novel")
	assert.Contains(t, got, "no specific guidance")
}
