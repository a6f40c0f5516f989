// Package token mints correlation tokens: 16-character lowercase-hex
// identifiers embedded into injected payloads and later matched against
// inbound callbacks.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"ricochet.dev/ricochet/internal/rerrors"
)

// Length is the fixed length, in characters, of every minted token.
const Length = 16

// New mints a fresh 16-character lowercase-hex token from crypto/rand.
// Each call is independent; callers needing a batch of tokens call New
// repeatedly rather than deriving tokens from one another, so a later
// compromise of one token reveals nothing about any other.
func New() (string, error) {
	buf := make([]byte, Length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", rerrors.StoreIOError(err, "reading random bytes for token")
	}
	return hex.EncodeToString(buf), nil
}

// MustNew is New, panicking on entropy-source failure. Only appropriate in
// paths where a failure to read crypto/rand indicates the process itself is
// unusable (CLI startup), never inside a request-handling loop.
func MustNew() string {
	tok, err := New()
	if err != nil {
		panic(fmt.Sprintf("token: %v", err))
	}
	return tok
}

// Valid reports whether s is a syntactically valid token: exactly Length
// characters, all lowercase hex. The HTTP and DNS listeners use this to
// decide whether an inbound identifier could possibly correlate to an
// injection before querying the store.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if !isLowerHex(c) {
			return false
		}
	}
	return true
}

func isLowerHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
