// Package correlation turns the store's injection/callback join into
// Finding records, deriving delay and severity. Severity is a pure
// function of the injection's context tag, never of response content.
package correlation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ricochet.dev/ricochet/internal/store"
)

// Severity is ricochet's coarse finding-severity scale.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityInfo   Severity = "info"
)

// rank orders severities low-to-high so MinSeverity filtering can compare
// thresholds without hardcoding the three-way switch at every call site.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Finding is one correlated injection/callback pair, ready for rendering.
type Finding struct {
	Token         string
	URL           string
	Method        string
	ParamName     string
	ContextTag    string
	PayloadUsed   string
	Callback      store.Callback
	Metadata      map[string]any
	DelaySeconds  float64
	Severity      Severity
	InjectedAt    time.Time
	CallbackAt    time.Time
}

// SeverityForContextTag derives severity purely from tag: the same ssti
// payload is always "high", independent of what the callback body
// contained. Tags are free-form, so matching is on substring — a
// "blind-sqli" tag ranks the same as "sqli:mssql".
func SeverityForContextTag(tag string) Severity {
	switch {
	case strings.Contains(tag, "ssti"), strings.Contains(tag, "sqli"):
		return SeverityHigh
	case strings.Contains(tag, "xss"):
		return SeverityMedium
	default:
		return SeverityInfo
	}
}

// FromPair builds a Finding from a store.CorrelatedPair. Metadata lives in
// the callback's body column and is parsed lazily: a body that is valid
// JSON becomes the Metadata map, anything else leaves it nil.
func FromPair(p store.CorrelatedPair) Finding {
	f := Finding{
		Token:        p.Injection.Token,
		URL:          p.Injection.URL,
		Method:       p.Injection.Method,
		ParamName:    p.Injection.ParamName,
		ContextTag:   p.Injection.ContextTag,
		PayloadUsed:  p.Injection.PayloadTemplate,
		Callback:     p.Callback,
		InjectedAt:   p.Injection.SentAt,
		CallbackAt:   p.Callback.ReceivedAt,
		DelaySeconds: p.Callback.ReceivedAt.Sub(p.Injection.SentAt).Seconds(),
		Severity:     SeverityForContextTag(p.Injection.ContextTag),
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(p.Callback.Body), &meta); err == nil {
		f.Metadata = meta
	}
	return f
}

// Query finds every correlated pair received at or after since (zero
// value: all time) and returns them as Findings, newest callback first.
// minSeverity, if non-empty, drops any finding ranked below it; this is
// applied in memory since the severity mapping lives in this package, not
// the storage layer.
func Query(ctx context.Context, s *store.Store, since time.Time, minSeverity Severity) ([]Finding, error) {
	pairs, err := s.ListCorrelated(ctx, since)
	if err != nil {
		return nil, err
	}
	findings := make([]Finding, 0, len(pairs))
	for _, p := range pairs {
		f := FromPair(p)
		if minSeverity != "" && f.Severity.rank() < minSeverity.rank() {
			continue
		}
		findings = append(findings, f)
	}
	return findings, nil
}
