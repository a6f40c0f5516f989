// Package inject implements the core send pipeline: mint a token, record
// the injection, rate-limit, send the payload, log the outcome. Every
// other mode (passive, active) builds on this same pipeline rather than
// reimplementing it — one engine, many batch strategies.
package inject

import (
	"context"
	"net/http"
	"time"

	"ricochet.dev/ricochet/internal/httpclient"
	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/ratelimit"
	"ricochet.dev/ricochet/internal/request"
	"ricochet.dev/ricochet/internal/store"
	"ricochet.dev/ricochet/internal/token"
)

// Result reports what happened to a single vector: the minted token, and
// either a status code or an error, never both. DryRun results carry
// neither, since no network call was made.
type Result struct {
	Token      string
	Vector     request.Vector
	StatusCode int
	Err        error
	DryRun     bool
}

// Injector ties together the pieces every send needs: a store to record
// into, a limiter to pace through, and an HTTP client to send with.
type Injector struct {
	Store   *store.Store
	Limiter *ratelimit.Limiter
	Client  *http.Client
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// CallbackBase is the HTTP callback URL (e.g. "http://cb.example")
	// joined with "/" + token wherever a payload's {{CALLBACK}}
	// placeholder is substituted. Left empty, the bare token is
	// substituted instead, for templates built around a DNS collaborator
	// domain already baked into the template.
	CallbackBase string
}

// New builds an Injector with a default HTTP client (redirects disabled,
// 10-second timeout).
func New(s *store.Store, limiter *ratelimit.Limiter) *Injector {
	return &Injector{
		Store:   s,
		Limiter: limiter,
		Client:  httpclient.New(httpclient.DefaultOptions()),
	}
}

// Send mints a token for v, records the injection, waits on the rate
// limiter, then sends the payload. dryRun skips the rate limiter and the
// network call but still records, so the store reflects the planned batch
// and can be inspected before a real run.
func (inj *Injector) Send(ctx context.Context, v request.Vector, dryRun bool) Result {
	tok, err := token.New()
	if err != nil {
		return Result{Vector: v, Err: err}
	}

	callbackValue := request.CallbackValue(inj.CallbackBase, tok)
	payload := request.Render(v.PayloadTemplate, callbackValue)

	record := store.Injection{
		Token:           tok,
		URL:             v.URL,
		Method:          v.Method,
		ParamName:       v.ParamName,
		ContextTag:      v.ContextTag,
		PayloadTemplate: payload, // post-substitution payload text, token already embedded
		DryRun:          dryRun,
		SentAt:          time.Now(),
	}
	// The injection is durably recorded before the network call, so a
	// callback arriving before Send returns (or a crash mid-send) can
	// never be missed for lack of a row to join to. Dry runs record too,
	// leaving the store reflecting planned injections.
	if err := inj.Store.RecordInjection(ctx, record); err != nil {
		return Result{Token: tok, Vector: v, Err: err}
	}

	if dryRun {
		return Result{Token: tok, Vector: v, DryRun: true}
	}

	if inj.Limiter != nil {
		if err := inj.Limiter.Acquire(ctx); err != nil {
			return Result{Token: tok, Vector: v, Err: err}
		}
	}

	req, err := request.Build(v, callbackValue)
	if err != nil {
		return Result{Token: tok, Vector: v, Err: err}
	}
	req = req.WithContext(ctx)

	outcome := httpclient.Send(inj.Client, req)
	inj.record(v, outcome)

	return Result{Token: tok, Vector: v, StatusCode: outcome.StatusCode, Err: outcome.Err}
}

// SendRaw is Send's counterpart for a request parsed from a Burp-style raw
// request file: the same record-before-send pipeline, but the outgoing
// request is rebuilt from raw+vec via request.BuildFromRaw so body-bearing
// vectors (form, json) and Content-Length integrity are handled correctly,
// which the simple request.Build path cannot do.
func (inj *Injector) SendRaw(ctx context.Context, raw *request.RawRequest, vec request.RawVector, payloadTemplate, contextTag string, dryRun bool) Result {
	v := request.Vector{URL: raw.URL(), Method: raw.Method, ParamName: vec.ParamName, In: vec.In, PayloadTemplate: payloadTemplate, ContextTag: contextTag}

	tok, err := token.New()
	if err != nil {
		return Result{Vector: v, Err: err}
	}

	callbackValue := request.CallbackValue(inj.CallbackBase, tok)
	payload := request.Render(payloadTemplate, callbackValue)

	record := store.Injection{
		Token:           tok,
		URL:             v.URL,
		Method:          v.Method,
		ParamName:       v.ParamName,
		ContextTag:      contextTag,
		PayloadTemplate: payload,
		DryRun:          dryRun,
		SentAt:          time.Now(),
	}
	if err := inj.Store.RecordInjection(ctx, record); err != nil {
		return Result{Token: tok, Vector: v, Err: err}
	}

	if dryRun {
		return Result{Token: tok, Vector: v, DryRun: true}
	}

	if inj.Limiter != nil {
		if err := inj.Limiter.Acquire(ctx); err != nil {
			return Result{Token: tok, Vector: v, Err: err}
		}
	}

	req, err := request.BuildFromRaw(raw, vec, payloadTemplate, callbackValue)
	if err != nil {
		return Result{Token: tok, Vector: v, Err: err}
	}
	req = req.WithContext(ctx)

	outcome := httpclient.Send(inj.Client, req)
	inj.record(v, outcome)

	return Result{Token: tok, Vector: v, StatusCode: outcome.StatusCode, Err: outcome.Err}
}

func (inj *Injector) record(v request.Vector, outcome httpclient.Outcome) {
	if inj.Metrics != nil {
		status := "sent"
		if outcome.Err != nil {
			status = "error"
		}
		inj.Metrics.InjectionsSent.WithLabelValues(v.ContextTag, status).Inc()
	}
	if inj.Logger != nil {
		if outcome.Err != nil {
			inj.Logger.Sugar().Warnw("injection send failed", "url", v.URL, "param", v.ParamName, "context_tag", v.ContextTag, "error", outcome.Err)
		} else {
			inj.Logger.Sugar().Infow("injection sent", "url", v.URL, "param", v.ParamName, "context_tag", v.ContextTag, "status", outcome.StatusCode)
		}
	}
}
