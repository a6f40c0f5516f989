package store

import "time"

// Injection is a single payload-send event: a token minted, embedded in a
// payload, and recorded here before the network call, so a callback can
// never arrive ahead of the row it joins against.
type Injection struct {
	Token           string
	URL             string
	Method          string
	ParamName       string
	ContextTag      string
	PayloadTemplate string
	DryRun          bool
	SentAt          time.Time
}

// Callback is a single inbound out-of-band hit, correlated to an Injection
// by Token. Callbacks are append-only, never updated or deleted once
// written, so a join against injections is always safe to repeat without
// double-counting or losing history.
type Callback struct {
	ID          string
	Token       string
	Protocol    string // "http" or "dns"
	RemoteAddr  string
	RequestPath string // HTTP path, or "DNS:<qname>" for DNS hits
	Headers     string // JSON-serialized header/metadata mapping
	Body        string
	ReceivedAt  time.Time
}
