// Package request models injectable HTTP requests: it substitutes a
// correlation token into a payload template's `{{CALLBACK}}` placeholder
// and rebuilds the outgoing request with the payload placed at a chosen
// vector (query, form, header, cookie, or JSON body field).
package request

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"ricochet.dev/ricochet/internal/rerrors"
)

// placeholderPattern matches any of the accepted callback placeholder
// spellings, case-insensitively: {{CALLBACK}}, {{callback}}, {CALLBACK},
// ${CALLBACK}. The match is literal; no internal whitespace is tolerated,
// so "{{ CALLBACK }}" is left untouched.
var placeholderPattern = regexp.MustCompile(`(?i)(\{\{callback\}\}|\{callback\}|\$\{callback\})`)

// Vector is a single injectable location in a request: a named parameter
// (query, form, header, or cookie) whose value is the payload template.
type Vector struct {
	URL             string
	Method          string
	ParamName       string
	In              string // "query", "form", "header", or "cookie"
	PayloadTemplate string
	ContextTag      string
}

// HasPlaceholder reports whether the vector's template contains a
// recognized callback placeholder.
func HasPlaceholder(template string) bool {
	return placeholderPattern.MatchString(template)
}

// Render substitutes value into template's callback placeholder(s),
// replacing every accepted spelling, not just the first occurrence.
func Render(template, value string) string {
	return placeholderPattern.ReplaceAllString(template, value)
}

// CallbackValue builds the string that replaces {{CALLBACK}} in a payload
// template: an HTTP callback base is joined with "/" + token; a bare token
// (no base configured) is used as-is, letting templates that already
// append a DNS suffix in the template text (e.g. "{{CALLBACK}}.oast.example")
// work unchanged.
func CallbackValue(callbackBase, token string) string {
	if callbackBase == "" {
		return token
	}
	return strings.TrimRight(callbackBase, "/") + "/" + token
}

// Build constructs an *http.Request for v with callbackValue substituted
// into its payload template, placed according to v.In.
func Build(v Vector, callbackValue string) (*http.Request, error) {
	payload := Render(v.PayloadTemplate, callbackValue)

	switch v.In {
	case "query":
		u, err := url.Parse(v.URL)
		if err != nil {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("parsing url %q: %v", v.URL, err))
		}
		q := u.Query()
		q.Set(v.ParamName, payload)
		u.RawQuery = q.Encode()
		return http.NewRequest(method(v.Method), u.String(), nil)

	case "form":
		form := url.Values{}
		form.Set(v.ParamName, payload)
		req, err := http.NewRequest(method(v.Method), v.URL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil

	case "header":
		req, err := http.NewRequest(method(v.Method), v.URL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(v.ParamName, payload)
		return req, nil

	case "cookie":
		req, err := http.NewRequest(method(v.Method), v.URL, nil)
		if err != nil {
			return nil, err
		}
		req.AddCookie(&http.Cookie{Name: v.ParamName, Value: payload})
		return req, nil

	default:
		return nil, rerrors.InvalidArgumentError(fmt.Sprintf("unknown vector location %q", v.In))
	}
}

func method(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}
