package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DoesNotFollowRedirectsByDefault(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirector.Close()

	client := New(DefaultOptions())
	req, err := http.NewRequest(http.MethodGet, redirector.URL, nil)
	require.NoError(t, err)

	outcome := Send(client, req)
	require.NoError(t, outcome.Err)
	assert.Equal(t, http.StatusFound, outcome.StatusCode)
}

func TestSend_NonTransportErrorStatusIsStillAnOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(DefaultOptions())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	outcome := Send(client, req)
	require.NoError(t, outcome.Err)
	assert.Equal(t, http.StatusInternalServerError, outcome.StatusCode)
}

func TestNew_RoutesThroughConfiguredProxy(t *testing.T) {
	var sawRequest bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRequest = true
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	client := New(Options{Timeout: DefaultOptions().Timeout, Proxy: proxy.URL})
	req, err := http.NewRequest(http.MethodGet, "http://target.example/", nil)
	require.NoError(t, err)

	outcome := Send(client, req)
	require.NoError(t, outcome.Err)
	assert.True(t, sawRequest, "request should have been routed through the configured proxy")
}

func TestNew_InsecureTLSSkipsVerification(t *testing.T) {
	client := New(Options{Timeout: DefaultOptions().Timeout, InsecureTLS: true})
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestSend_UnreachableHostIsNetworkError(t *testing.T) {
	client := New(DefaultOptions())
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	outcome := Send(client, req)
	assert.Error(t, outcome.Err)
}
