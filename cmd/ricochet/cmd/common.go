package cmd

import (
	"bufio"
	"net"
	"strconv"
	"strings"

	"ricochet.dev/ricochet/internal/rerrors"
)

// addrHost strips the port off a host:port address, tolerating an address
// with no port at all.
func addrHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// joinHostPort rebuilds a host:port address from parts, using host as-is
// (already-bracketed IPv6 literals pass through net.JoinHostPort
// unchanged).
func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// parsePayloadLines splits a multi-payload template file into templates:
// one template per line, '#'-prefixed and blank lines skipped, trailing
// LF/CRLF stripped, leading whitespace preserved (a payload may
// deliberately start with spaces).
func parsePayloadLines(contents string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(contents))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// schemeHint infers the scheme for a raw request file from an optional
// --url hint: a hint starting with "http://" selects plain http, anything
// else (including no hint at all) selects https, since a raw request file
// carries no scheme of its own.
func schemeHint(urlHint string) string {
	if strings.HasPrefix(urlHint, "http://") {
		return "http"
	}
	return "https"
}

// requireTogether validates that -u URL and -p PARAM are present together,
// since neither makes sense alone.
func requireTogether(url, param string) error {
	if (url == "") != (param == "") {
		return rerrors.UsageError("-u/--url and -p/--param must be given together")
	}
	if url == "" && param == "" {
		return rerrors.UsageError("inject requires either (-u URL -p PARAM) or -r REQUEST_FILE")
	}
	return nil
}
