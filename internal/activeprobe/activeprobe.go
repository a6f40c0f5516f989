// Package activeprobe implements the `active` command's batch strategy:
// cross an endpoint-path catalog with a set of common parameter names and
// run the same Injector pipeline against every resulting vector, bounded
// by a worker pool with context cancellation checked both while scheduling
// and inside each worker. Adapted from the sukyan host-header-injection
// audit's scheduling/worker-pool shape.
package activeprobe

import (
	"context"
	"strings"
	"sync"

	"ricochet.dev/ricochet/internal/inject"
	"ricochet.dev/ricochet/internal/request"
)

// DefaultParamNames are the query parameter names probed against every
// catalog endpoint when the caller doesn't supply its own list.
var DefaultParamNames = []string{"q", "search", "id", "name", "callback", "url", "path"}

// DefaultEndpoints is the small built-in catalog used when --endpoints is
// not given: common admin/API path shapes worth trying against any target.
var DefaultEndpoints = []string{
	"/api/v1/users",
	"/api/v1/search",
	"/admin/users",
	"/admin/settings",
	"/profile",
	"/search",
}

// Options configures a Run.
type Options struct {
	BaseURL         string
	Endpoints       []string
	ParamNames      []string
	PayloadTemplate string
	ContextTag      string
	Concurrency     int
	DryRun          bool
}

// Run crosses Endpoints with ParamNames, sending one injection per pair
// through inj, bounded by Concurrency concurrent workers. It returns every
// inject.Result, in completion order (not submission order).
func Run(ctx context.Context, inj *inject.Injector, opts Options) []inject.Result {
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	params := opts.ParamNames
	if len(params) == 0 {
		params = DefaultParamNames
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	type job struct {
		endpoint, param string
	}
	jobs := make(chan job)
	results := make(chan inject.Result)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				v := request.Vector{
					URL:             strings.TrimRight(opts.BaseURL, "/") + j.endpoint,
					Method:          "GET",
					ParamName:       j.param,
					In:              "query",
					PayloadTemplate: opts.PayloadTemplate,
					ContextTag:      opts.ContextTag,
				}
				results <- inj.Send(ctx, v, opts.DryRun)
			}
		}()
	}

	go func() {
		defer close(jobs)
	schedulingLoop:
		for _, e := range endpoints {
			for _, p := range params {
				select {
				case <-ctx.Done():
					break schedulingLoop
				case jobs <- job{endpoint: e, param: p}:
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []inject.Result
	for r := range results {
		out = append(out, r)
	}
	return out
}

// ParseEndpointsFile parses a one-path-template-per-line endpoint catalog,
// skipping blank lines and '#'-prefixed comments.
func ParseEndpointsFile(contents string) []string {
	var out []string
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		out = append(out, line)
	}
	return out
}
