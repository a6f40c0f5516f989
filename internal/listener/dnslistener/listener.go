// Package dnslistener implements the DNS callback receiver: a UDP server
// speaking just enough of RFC 1035 to answer A queries and record any
// token found in the queried name. No third-party DNS library is used; a
// general-purpose resolver/server library would bring far more protocol
// surface than this fixed-answer responder needs or wants to trust.
package dnslistener

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/store"
	"ricochet.dev/ricochet/internal/token"
)

const headerSize = 12

// flag bits within the 16-bit header flags field.
const (
	flagQR = 1 << 15 // query/response
	flagAA = 1 << 10 // authoritative answer
	flagRA = 1 << 7  // recursion available
)

const (
	qtypeA = 1
)

// query is a minimally parsed DNS question: just enough to answer it and
// to recover the queried name for token matching.
type query struct {
	id     uint16
	rd     bool // recursion desired, echoed back
	name   string
	qtype  uint16
	qclass uint16
}

// Listener answers DNS queries over UDP, responding NOERROR to every
// well-formed query (malformed ones are dropped) and an A record
// (127.0.0.1) to QTYPE=A queries, recording a Callback when the queried
// name's first label is a valid token that matches a recorded injection.
type Listener struct {
	Store   *store.Store
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// ListenAndServe starts the UDP listener on addr, blocking until ctx is
// done. It returns an error only if the socket cannot be opened; read
// errors are logged and the loop keeps reading.
func ListenAndServe(ctx context.Context, addr string, l *Listener) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving dns listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on udp %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if l.Logger != nil {
				l.Logger.WithError(err).Warn("dns read failed")
			}
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		go l.handle(conn, remote, msg)
	}
}

func (l *Listener) handle(conn *net.UDPConn, remote *net.UDPAddr, msg []byte) {
	q, err := parseQuery(msg)
	if err != nil {
		return
	}

	l.recordCallback(q, remote)

	resp := buildResponse(q)
	if _, err := conn.WriteToUDP(resp, remote); err != nil && l.Logger != nil {
		l.Logger.WithError(err).Warn("dns write failed")
	}
}

func (l *Listener) recordCallback(q query, remote *net.UDPAddr) {
	tok := extractToken(q.name)
	if tok == "" {
		return
	}

	headerJSON, _ := json.Marshal(map[string]uint16{"qtype": q.qtype})

	cb := store.Callback{
		ID:          uuid.NewString(),
		Token:       tok,
		Protocol:    "dns",
		RemoteAddr:  remote.String(),
		RequestPath: "DNS:" + q.name,
		Headers:     string(headerJSON),
		ReceivedAt:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	persisted, err := l.Store.RecordCallback(ctx, cb)
	if err != nil {
		if l.Logger != nil {
			l.Logger.WithError(err).Warn("failed to record dns callback")
		}
		return
	}
	if !persisted {
		if l.Logger != nil {
			l.Logger.Sugar().Warnw("dns callback for unknown token", "token", tok, "name", q.name, "remote_addr", remote.String())
		}
		return
	}
	if l.Metrics != nil {
		l.Metrics.CallbacksReceived.WithLabelValues("dns").Inc()
	}
	if l.Logger != nil {
		l.Logger.Sugar().Infow("dns callback received", "token", tok, "name", q.name, "remote_addr", remote.String())
	}
}

// extractToken lowercases the first label of name and returns it if it is
// a syntactically valid token. Only the first label is considered, since a
// real payload embeds the token as the leftmost subdomain (e.g.
// "<token>.collab.example.com").
func extractToken(name string) string {
	first, _, _ := strings.Cut(strings.TrimSuffix(name, "."), ".")
	first = strings.ToLower(first)
	if token.Valid(first) {
		return first
	}
	return ""
}

// parseQuery decodes just the header and first question of msg. Messages
// with zero questions, or too short to contain one, are rejected.
func parseQuery(msg []byte) (query, error) {
	if len(msg) < headerSize {
		return query{}, fmt.Errorf("message too short")
	}

	id := binary.BigEndian.Uint16(msg[0:2])
	flags := binary.BigEndian.Uint16(msg[2:4])
	qdcount := binary.BigEndian.Uint16(msg[4:6])
	if qdcount == 0 {
		return query{}, fmt.Errorf("no questions")
	}

	name, offset, err := decodeName(msg, headerSize)
	if err != nil {
		return query{}, err
	}
	if offset+4 > len(msg) {
		return query{}, fmt.Errorf("truncated question")
	}
	qtype := binary.BigEndian.Uint16(msg[offset : offset+2])
	qclass := binary.BigEndian.Uint16(msg[offset+2 : offset+4])

	return query{
		id:     id,
		rd:     flags&0x0100 != 0,
		name:   name,
		qtype:  qtype,
		qclass: qclass,
	}, nil
}

// decodeName decodes a (possibly compressed) QNAME starting at offset,
// returning the dotted-label string and the offset immediately after it.
// Compression pointers (RFC 1035 §4.1.4) are followed but the returned
// offset always reflects the position after the pointer, never after the
// jump target, since a pointer only ever appears at the end of a name.
func decodeName(msg []byte, offset int) (string, int, error) {
	var labels []string
	start := offset
	jumped := false
	pos := offset
	guard := 0

	for {
		guard++
		if guard > 128 {
			return "", 0, fmt.Errorf("name too long or looping")
		}
		if pos >= len(msg) {
			return "", 0, fmt.Errorf("name runs past end of message")
		}
		length := int(msg[pos])

		if length == 0 {
			pos++
			break
		}

		if length&0xC0 == 0xC0 {
			if pos+1 >= len(msg) {
				return "", 0, fmt.Errorf("truncated compression pointer")
			}
			pointer := int(binary.BigEndian.Uint16(msg[pos:pos+2]) & 0x3FFF)
			if !jumped {
				start = pos + 2
			}
			pos = pointer
			jumped = true
			continue
		}

		if pos+1+length > len(msg) {
			return "", 0, fmt.Errorf("label runs past end of message")
		}
		labels = append(labels, string(msg[pos+1:pos+1+length]))
		pos += 1 + length
	}

	end := pos
	if jumped {
		end = start
	}
	return strings.Join(labels, "."), end, nil
}

// buildResponse constructs a reply to q: an A record pointing at
// 127.0.0.1 for QTYPE=A, or NOERROR with zero answers for anything else.
// Every well-formed query gets an answer; a silent drop would trigger
// resolver retries, multiplying callbacks for one injection.
func buildResponse(q query) []byte {
	var buf []byte

	// QR, AA, and RA are set unconditionally; only the echoed RD bit
	// depends on what the query asked for.
	flags := uint16(flagQR | flagAA | flagRA)
	if q.rd {
		flags |= 0x0100
	}

	answerCount := uint16(0)
	if q.qtype == qtypeA {
		answerCount = 1
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], q.id)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], 1) // QDCOUNT
	binary.BigEndian.PutUint16(header[6:8], answerCount)
	buf = append(buf, header...)

	buf = append(buf, encodeName(q.name)...)
	qtypeBytes := make([]byte, 4)
	binary.BigEndian.PutUint16(qtypeBytes[0:2], q.qtype)
	binary.BigEndian.PutUint16(qtypeBytes[2:4], q.qclass)
	buf = append(buf, qtypeBytes...)

	if answerCount == 1 {
		// NAME is a compression pointer back to the question's QNAME
		// rather than a re-encoding of the labels.
		buf = append(buf, 0xC0, 0x0C)
		rr := make([]byte, 10)
		binary.BigEndian.PutUint16(rr[0:2], qtypeA)
		binary.BigEndian.PutUint16(rr[2:4], 1) // IN class
		binary.BigEndian.PutUint32(rr[4:8], 60) // TTL
		binary.BigEndian.PutUint16(rr[8:10], 4) // RDLENGTH
		buf = append(buf, rr...)
		buf = append(buf, net.ParseIP("127.0.0.1").To4()...)
	}

	return buf
}

func encodeName(name string) []byte {
	var buf []byte
	if name == "" {
		return []byte{0}
	}
	for _, label := range strings.Split(name, ".") {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	return buf
}
