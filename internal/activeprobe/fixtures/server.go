// Package fixtures stands up a small multi-route HTTP server for
// activeprobe's own tests to probe against, so the probe's endpoint/param
// cross-product logic can be exercised against something with real routing
// instead of a single catch-all handler.
package fixtures

import (
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
)

// NewServer returns a running *httptest.Server exposing the same route
// shapes as activeprobe.DefaultEndpoints, each echoing back every query
// parameter value it received so tests can assert a payload made it
// through unmodified.
func NewServer() *httptest.Server {
	r := mux.NewRouter()

	routes := []string{
		"/api/v1/users",
		"/api/v1/search",
		"/admin/users",
		"/admin/settings",
		"/profile",
		"/search",
	}
	for _, route := range routes {
		r.HandleFunc(route, echoParams).Methods(http.MethodGet)
	}

	return httptest.NewServer(r)
}

func echoParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	for key, values := range r.URL.Query() {
		for _, v := range values {
			w.Write([]byte(key + "=" + v + "\n"))
		}
	}
}
