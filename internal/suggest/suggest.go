// Package suggest implements the `suggest` command's read-only advisory:
// given a context tag, recommend where a second-order sink might actually
// fire a stored payload. No network activity, no new state, just a static
// lookup table keyed by context-tag prefix.
package suggest

import "strings"

// Hint is a single piece of advice for a context tag.
type Hint struct {
	ContextTagPrefix string
	Advice           string
}

// hints is ordered most-specific prefix first; ForContextTag returns the
// first match.
var hints = []Hint{
	{"ssti", "second-order template injection: check admin dashboards, templated emails, PDF/report generation, and any view that renders a stored field through a template engine"},
	{"sqli", "second-order SQL injection: check admin list/search views, scheduled reports, and any code path that re-reads and re-uses a stored value in a new query"},
	{"xss:html", "stored XSS rendered as HTML: check admin user-list views, moderation queues, and templated emails that echo the field back"},
	{"xss:js", "stored XSS rendered inside a script context: check inline event handlers and JSON embedded directly into <script> tags"},
	{"xss", "stored XSS: check any admin or moderation view that displays the field, and templated emails/notifications"},
	{"header", "header-originated second-order effect: check logging pipelines, webhook forwarders, and anything that replays request headers into a new request"},
}

// ForContextTag returns the best-matching advice for tag, or a generic
// fallback if no prefix matches.
func ForContextTag(tag string) string {
	for _, h := range hints {
		if strings.HasPrefix(tag, h.ContextTagPrefix) {
			return h.Advice
		}
	}
	return "no specific guidance for this context tag: check any view, report, or downstream system that reads back the field this payload was injected into"
}
