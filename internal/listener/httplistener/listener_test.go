package httplistener

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricochet.dev/ricochet/internal/store"
)

func newTestListener(t *testing.T) (*Listener, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &Listener{Store: s}, s
}

func TestHandle_AlwaysReturns200RegardlessOfTokenValidity(t *testing.T) {
	l, _ := newTestListener(t)
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	paths := []string{"/aaaaaaaaaaaaaaaa", "/not-a-token", "/", "/a/b/c/bogus-trailer"}
	for _, p := range paths {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"), p)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "OK", string(body), p)
		resp.Body.Close()
	}
}

func TestHandle_AnyMethodAccepted(t *testing.T) {
	l, _ := newTestListener(t)
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		req, err := http.NewRequest(method, srv.URL+"/aaaaaaaaaaaaaaaa", strings.NewReader("x"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
		resp.Body.Close()
	}
}

func TestHandle_RecordsCallbackForValidToken(t *testing.T) {
	l, s := newTestListener(t)
	require.NoError(t, s.RecordInjection(context.Background(), store.Injection{
		Token: "bbbbbbbbbbbbbbbb", URL: "https://target.example", Method: "GET", ParamName: "q",
		ContextTag: "xss", PayloadTemplate: "x", SentAt: time.Now(),
	}))
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/path/to/bbbbbbbbbbbbbbbb", "text/plain", strings.NewReader("exfiltrated=data"))
	require.NoError(t, err)
	resp.Body.Close()

	cbs, err := s.ListCallbacksByToken(context.Background(), "bbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	require.Len(t, cbs, 1)
	assert.Contains(t, cbs[0].Body, "exfiltrated")
}

func TestHandle_UnknownTokenRecordsNothingButStillReturns200(t *testing.T) {
	l, s := newTestListener(t)
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cbs, err := s.ListCallbacksByToken(context.Background(), "ffffffffffffffff")
	require.NoError(t, err)
	assert.Empty(t, cbs)
}

func TestHandle_InvalidTokenRecordsNothing(t *testing.T) {
	l, s := newTestListener(t)
	srv := httptest.NewServer(l.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/totally-not-a-token")
	require.NoError(t, err)
	resp.Body.Close()

	cbs, err := s.ListCallbacksByToken(context.Background(), "totally-not-a-token")
	require.NoError(t, err)
	assert.Empty(t, cbs)
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "abc", lastPathSegment("/x/y/abc"))
	assert.Equal(t, "abc", lastPathSegment("/abc/"))
	assert.Equal(t, "", lastPathSegment("/"))
	assert.Equal(t, "", lastPathSegment(""))
}
