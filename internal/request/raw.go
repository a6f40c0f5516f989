package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ricochet.dev/ricochet/internal/rerrors"
)

// RawRequest is a Burp-style raw HTTP/1.1 request parsed into its parts:
// request line, ordered headers (duplicates preserved), and body. CRLF is
// the canonical line terminator but ParseRaw also tolerates LF-only
// endings, since saved request files often pass through editors that
// normalize them.
type RawRequest struct {
	Method  string
	Target  string // request-target exactly as written (path + "?" + query)
	Proto   string
	Headers []RawHeader
	Body    []byte
	Scheme  string // inferred: "https" unless overridden
}

// RawHeader preserves header order and allows duplicate names, matching
// what a Burp "Raw request" export actually contains.
type RawHeader struct {
	Name  string
	Value string
}

// Get returns the first header value matching name case-insensitively, or
// "" if absent.
func (r *RawRequest) Get(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Host returns the mandatory Host header.
func (r *RawRequest) Host() string {
	return r.Get("Host")
}

// URL reconstructs the absolute target URL from scheme, Host header, and
// request-target.
func (r *RawRequest) URL() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + r.Host() + r.Target
}

// ParseRaw parses a Burp-style raw HTTP/1.1 request. Lines may be
// terminated by CRLF or bare LF.
func ParseRaw(data []byte, scheme string) (*RawRequest, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	parts := strings.SplitN(text, "\n\n", 2)
	head := parts[0]
	var body []byte
	if len(parts) == 2 {
		body = []byte(parts[1])
	}

	lines := strings.Split(head, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, rerrors.InvalidArgumentError("empty request line")
	}

	requestLine := strings.Fields(lines[0])
	if len(requestLine) != 3 {
		return nil, rerrors.InvalidArgumentError(fmt.Sprintf("malformed request line %q", lines[0]))
	}

	raw := &RawRequest{
		Method: strings.ToUpper(requestLine[0]),
		Target: requestLine[1],
		Proto:  requestLine[2],
		Scheme: scheme,
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("malformed header line %q", line))
		}
		raw.Headers = append(raw.Headers, RawHeader{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	if raw.Host() == "" {
		return nil, rerrors.InvalidArgumentError("request is missing a Host header")
	}

	raw.Body = body
	return raw, nil
}

// RawVector identifies one injectable position discovered inside a
// RawRequest: a query parameter, header, cookie, url-encoded body field,
// or top-level JSON string body field.
type RawVector struct {
	In        string // "query", "header", "cookie", "form", "json"
	ParamName string
}

// ExtractVectors enumerates every injectable position in raw: query
// parameters, non-framing headers, cookies, url-encoded body fields, and
// top-level JSON string body fields.
func ExtractVectors(raw *RawRequest) []RawVector {
	var out []RawVector

	if idx := strings.Index(raw.Target, "?"); idx >= 0 {
		if q, err := url.ParseQuery(raw.Target[idx+1:]); err == nil {
			for name := range q {
				out = append(out, RawVector{In: "query", ParamName: name})
			}
		}
	}

	for _, h := range raw.Headers {
		switch strings.ToLower(h.Name) {
		case "host", "content-length", "cookie":
			continue
		default:
			out = append(out, RawVector{In: "header", ParamName: h.Name})
		}
	}

	if cookieHeader := raw.Get("Cookie"); cookieHeader != "" {
		for _, pair := range strings.Split(cookieHeader, ";") {
			name, _, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && name != "" {
				out = append(out, RawVector{In: "cookie", ParamName: name})
			}
		}
	}

	contentType := raw.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if form, err := url.ParseQuery(string(raw.Body)); err == nil {
			for name := range form {
				out = append(out, RawVector{In: "form", ParamName: name})
			}
		}
	case strings.Contains(contentType, "application/json"):
		var fields map[string]any
		if err := json.Unmarshal(raw.Body, &fields); err == nil {
			for name, val := range fields {
				if _, ok := val.(string); ok {
					out = append(out, RawVector{In: "json", ParamName: name})
				}
			}
		}
	}

	return out
}

// BuildFromRaw reconstructs an *http.Request from raw with exactly one
// vector's value replaced by callbackValue substituted into
// payloadTemplate's {{CALLBACK}} placeholder, recomputing Content-Length
// whenever the substitution changes the body's byte length.
func BuildFromRaw(raw *RawRequest, vec RawVector, payloadTemplate, callbackValue string) (*http.Request, error) {
	payload := Render(payloadTemplate, callbackValue)

	target := raw.Target
	headers := append([]RawHeader(nil), raw.Headers...)
	body := append([]byte(nil), raw.Body...)

	switch vec.In {
	case "query":
		pathPart, rawQuery, _ := strings.Cut(target, "?")
		q, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("parsing query: %v", err))
		}
		q.Set(vec.ParamName, payload)
		target = pathPart + "?" + q.Encode()

	case "header":
		for i, h := range headers {
			if strings.EqualFold(h.Name, vec.ParamName) {
				headers[i].Value = payload
			}
		}

	case "cookie":
		for i, h := range headers {
			if !strings.EqualFold(h.Name, "Cookie") {
				continue
			}
			var rebuilt []string
			for _, pair := range strings.Split(h.Value, ";") {
				name, _, ok := strings.Cut(strings.TrimSpace(pair), "=")
				if ok && name == vec.ParamName {
					rebuilt = append(rebuilt, name+"="+payload)
				} else if strings.TrimSpace(pair) != "" {
					rebuilt = append(rebuilt, strings.TrimSpace(pair))
				}
			}
			headers[i].Value = strings.Join(rebuilt, "; ")
		}

	case "form":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("parsing form body: %v", err))
		}
		form.Set(vec.ParamName, payload)
		body = []byte(form.Encode())

	case "json":
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("parsing json body: %v", err))
		}
		fields[vec.ParamName] = payload
		reEncoded, err := json.Marshal(fields)
		if err != nil {
			return nil, rerrors.InvalidArgumentError(fmt.Sprintf("re-encoding json body: %v", err))
		}
		body = reEncoded

	default:
		return nil, rerrors.InvalidArgumentError(fmt.Sprintf("unknown vector location %q", vec.In))
	}

	req, err := http.NewRequest(raw.Method, rebuildScheme(raw)+"://"+raw.Host()+target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	// Content-Length is always derived from the final body, never carried
	// over from the parsed request.
	if len(body) > 0 {
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
		req.ContentLength = int64(len(body))
	}
	return req, nil
}

func rebuildScheme(raw *RawRequest) string {
	if raw.Scheme != "" {
		return raw.Scheme
	}
	return "https"
}
