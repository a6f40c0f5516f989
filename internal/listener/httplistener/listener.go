// Package httplistener implements the HTTP callback receiver: a catch-all
// server that accepts any path and method, always answers 200 OK, and
// records a hit whose URL path carries the token of a recorded injection.
// The response never varies with whether the token is recognized, so a
// probing client cannot enumerate which tokens are live.
package httplistener

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/store"
	"ricochet.dev/ricochet/internal/token"
)

const maxBodyBytes = 1 << 20 // 1MiB cap on recorded callback bodies

// Listener answers every request with 200 OK and records a Callback when
// the last non-empty path segment is a syntactically valid token that
// matches a recorded injection; hits for unknown tokens are logged, not
// stored.
type Listener struct {
	Store   *store.Store
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Handler returns the http.Handler to mount as the server's sole route.
func (l *Listener) Handler() http.Handler {
	return http.HandlerFunc(l.handle)
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	// Always 200 OK with a fixed body, no matter what follows. Setting
	// this up first means a failure recording the callback can never
	// change what the caller observes.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))

	tok := lastPathSegment(r.URL.Path)
	if !token.Valid(tok) {
		return
	}

	body, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))

	headerMap := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headerMap[k] = r.Header.Get(k)
	}
	headerJSON, _ := json.Marshal(headerMap)

	cb := store.Callback{
		ID:          uuid.NewString(),
		Token:       tok,
		Protocol:    "http",
		RemoteAddr:  r.RemoteAddr,
		RequestPath: r.URL.Path,
		Headers:     string(headerJSON),
		Body:        string(body),
		ReceivedAt:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	persisted, err := l.Store.RecordCallback(ctx, cb)
	if err != nil {
		if l.Logger != nil {
			l.Logger.WithError(err).Warn("failed to record http callback")
		}
		return
	}
	if !persisted {
		if l.Logger != nil {
			l.Logger.Sugar().Warnw("http callback for unknown token", "token", tok, "remote_addr", r.RemoteAddr)
		}
		return
	}
	if l.Metrics != nil {
		l.Metrics.CallbacksReceived.WithLabelValues("http").Inc()
	}
	if l.Logger != nil {
		l.Logger.Sugar().Infow("http callback received", "token", tok, "remote_addr", r.RemoteAddr)
	}
}

func lastPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

// ListenAndServe starts the HTTP listener on addr, blocking until ctx is
// done or the server fails.
func ListenAndServe(ctx context.Context, addr string, l *Listener) error {
	srv := &http.Server{Addr: addr, Handler: l.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
