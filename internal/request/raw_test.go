package request

import (
	"encoding/json"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRequest = "POST /search?q=widgets&page=2 HTTP/1.1\r\n" +
	"Host: target.example\r\n" +
	"Cookie: session=abc123; theme=dark\r\n" +
	"X-Forwarded-Host: internal.example\r\n" +
	"Content-Type: application/x-www-form-urlencoded\r\n" +
	"Content-Length: 13\r\n" +
	"\r\n" +
	"name=original"

func TestParseRaw_ToleratesLFOnlyLineEndings(t *testing.T) {
	lfOnly := "GET /x?y=1 HTTP/1.1\nHost: target.example\n\n"
	raw, err := ParseRaw([]byte(lfOnly), "https")
	require.NoError(t, err)
	assert.Equal(t, "GET", raw.Method)
	assert.Equal(t, "target.example", raw.Host())
}

func TestParseRaw_MissingHostErrors(t *testing.T) {
	_, err := ParseRaw([]byte("GET / HTTP/1.1\r\n\r\n"), "https")
	assert.Error(t, err)
}

func TestExtractVectors_FindsQueryHeaderCookieAndForm(t *testing.T) {
	raw, err := ParseRaw([]byte(sampleRequest), "https")
	require.NoError(t, err)

	vecs := ExtractVectors(raw)

	var sawQuery, sawHeader, sawCookie, sawForm bool
	for _, v := range vecs {
		switch {
		case v.In == "query" && v.ParamName == "q":
			sawQuery = true
		case v.In == "header" && v.ParamName == "X-Forwarded-Host":
			sawHeader = true
		case v.In == "cookie" && v.ParamName == "session":
			sawCookie = true
		case v.In == "form" && v.ParamName == "name":
			sawForm = true
		}
	}
	assert.True(t, sawQuery)
	assert.True(t, sawHeader)
	assert.True(t, sawCookie)
	assert.True(t, sawForm)
}

func TestExtractVectors_FindsTopLevelJSONStringFields(t *testing.T) {
	jsonReq := "POST /api HTTP/1.1\r\n" +
		"Host: target.example\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 23\r\n" +
		"\r\n" +
		`{"comment":"hi","id":5}`
	raw, err := ParseRaw([]byte(jsonReq), "https")
	require.NoError(t, err)

	vecs := ExtractVectors(raw)
	found := false
	for _, v := range vecs {
		if v.In == "json" && v.ParamName == "comment" {
			found = true
		}
		assert.False(t, v.In == "json" && v.ParamName == "id", "numeric fields are not string injection points")
	}
	assert.True(t, found)
}

func TestBuildFromRaw_FormVectorRecomputesContentLength(t *testing.T) {
	raw, err := ParseRaw([]byte(sampleRequest), "https")
	require.NoError(t, err)

	req, err := BuildFromRaw(raw, RawVector{In: "form", ParamName: "name"}, "{{CALLBACK}}", "aaaaaaaaaaaaaaaa")
	require.NoError(t, err)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "aaaaaaaaaaaaaaaa")

	wantLen := strconv.Itoa(len(body))
	assert.Equal(t, wantLen, req.Header.Get("Content-Length"))
}

func TestBuildFromRaw_QueryVectorLeavesOtherParamsAlone(t *testing.T) {
	raw, err := ParseRaw([]byte(sampleRequest), "https")
	require.NoError(t, err)

	req, err := BuildFromRaw(raw, RawVector{In: "query", ParamName: "q"}, "{{CALLBACK}}", "bbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", req.URL.Query().Get("q"))
	assert.Equal(t, "2", req.URL.Query().Get("page"))
}

func TestBuildFromRaw_JSONVectorReplacesOnlyTargetField(t *testing.T) {
	jsonReq := "POST /api/comments HTTP/1.1\r\n" +
		"Host: target.example\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 38\r\n" +
		"\r\n" +
		`{"comment":"hi","author":"bob","id":5}`
	raw, err := ParseRaw([]byte(jsonReq), "https")
	require.NoError(t, err)

	req, err := BuildFromRaw(raw, RawVector{In: "json", ParamName: "comment"}, "x{{CALLBACK}}x", "aaaaaaaaaaaaaaaa")
	require.NoError(t, err)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, "xaaaaaaaaaaaaaaaax", fields["comment"])
	assert.Equal(t, "bob", fields["author"])
	assert.Equal(t, float64(5), fields["id"], "non-string fields ride through the re-encode untouched")

	assert.Equal(t, strconv.Itoa(len(body)), req.Header.Get("Content-Length"))
}

func TestBuildFromRaw_JSONVectorRejectsMalformedBody(t *testing.T) {
	jsonReq := "POST /api HTTP/1.1\r\n" +
		"Host: target.example\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		`{"comment":`
	raw, err := ParseRaw([]byte(jsonReq), "https")
	require.NoError(t, err)

	_, err = BuildFromRaw(raw, RawVector{In: "json", ParamName: "comment"}, "{{CALLBACK}}", "bbbbbbbbbbbbbbbb")
	assert.Error(t, err)
}

func TestBuildFromRaw_CookieVectorPreservesOtherCookies(t *testing.T) {
	raw, err := ParseRaw([]byte(sampleRequest), "https")
	require.NoError(t, err)

	req, err := BuildFromRaw(raw, RawVector{In: "cookie", ParamName: "session"}, "{{CALLBACK}}", "cccccccccccccccc")
	require.NoError(t, err)

	c, err := req.Cookie("session")
	require.NoError(t, err)
	assert.Equal(t, "cccccccccccccccc", c.Value)

	theme, err := req.Cookie("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", theme.Value)
}
