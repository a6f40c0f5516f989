package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePayloadLines(t *testing.T) {
	contents := "<img src={{CALLBACK}}>\r\n" +
		"# a comment\n" +
		"\n" +
		"  payload with leading spaces\n" +
		"'||(SELECT 1 FROM dual)--\n"

	got := parsePayloadLines(contents)
	assert.Equal(t, []string{
		"<img src={{CALLBACK}}>",
		"  payload with leading spaces",
		"'||(SELECT 1 FROM dual)--",
	}, got)
}

func TestParsePayloadLines_EmptyFileYieldsNothing(t *testing.T) {
	assert.Empty(t, parsePayloadLines("\n# only comments\n\n"))
}

func TestSchemeHint(t *testing.T) {
	assert.Equal(t, "http", schemeHint("http://target.example/x"))
	assert.Equal(t, "https", schemeHint("https://target.example/x"))
	assert.Equal(t, "https", schemeHint(""))
}

func TestRequireTogether(t *testing.T) {
	assert.NoError(t, requireTogether("https://x", "q"))
	assert.Error(t, requireTogether("https://x", ""))
	assert.Error(t, requireTogether("", "q"))
	assert.Error(t, requireTogether("", ""))
}

func TestAddrHost(t *testing.T) {
	assert.Equal(t, "0.0.0.0", addrHost("0.0.0.0:8080"))
	assert.Equal(t, "localhost", addrHost("localhost"))
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "127.0.0.1:53", joinHostPort("127.0.0.1", 53))
}
