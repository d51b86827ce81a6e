package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RequestReader reads one client request at a time off a connection,
// sniffing the leading byte the way a real Redis server does: a '*'
// starts a RESP multibulk array (what go-redis and every other RESP
// client send), anything else is an inline command — a single line,
// whitespace-tokenized, quote-aware — which is the plain-text protocol
// spec.md's wire section describes and that a telnet session would use.
// Supporting both means the same listener speaks to the bundled
// line-oriented client and to a standard Redis client library, which is
// why cmd/testpipeline can drive it with go-redis.
type RequestReader struct {
	r *bufio.Reader
}

// NewRequestReader wraps r in a request-framing reader.
func NewRequestReader(r io.Reader) *RequestReader {
	return &RequestReader{r: bufio.NewReaderSize(r, 16*1024)}
}

// ReadRequest returns the next command name and its arguments. name is
// returned exactly as sent (uppercasing is the dispatcher's job).
func (rr *RequestReader) ReadRequest() (string, []string, error) {
	b, err := rr.r.Peek(1)
	if err != nil {
		return "", nil, err
	}
	if b[0] == '*' {
		return rr.readMultibulk()
	}
	return rr.readInline()
}

// Buffered reports how many bytes are already sitting in the read buffer,
// used by the connection loop to decide whether to flush eagerly.
func (rr *RequestReader) Buffered() int {
	return rr.r.Buffered()
}

// Peek returns the next byte without consuming it, blocking until at
// least one byte is available, the read deadline (if any) expires, or
// the connection errors.
func (rr *RequestReader) Peek() (byte, error) {
	b, err := rr.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (rr *RequestReader) readInline() (string, []string, error) {
	line, err := rr.r.ReadString('\n')
	if err != nil && line == "" {
		return "", nil, err
	}
	tokens := Tokenize(strings.TrimRight(line, "\r\n"))
	if len(tokens) == 0 {
		return "", nil, nil
	}
	return tokens[0], tokens[1:], nil
}

func (rr *RequestReader) readMultibulk() (string, []string, error) {
	n, err := rr.readArrayHeader('*')
	if err != nil {
		return "", nil, err
	}
	if n <= 0 {
		return "", nil, nil
	}

	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tok, err := rr.readBulkString()
		if err != nil {
			return "", nil, fmt.Errorf("reading multibulk element %d/%d: %w", i, n, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens[0], tokens[1:], nil
}

func (rr *RequestReader) readArrayHeader(want byte) (int, error) {
	line, err := rr.r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != want {
		return 0, fmt.Errorf("protocol error: expected %q, got %q", want, line)
	}
	return strconv.Atoi(line[1:])
}

func (rr *RequestReader) readBulkString() (string, error) {
	n, err := rr.readArrayHeader('$')
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", nil
	}
	buf := make([]byte, n+2) // +2 for the trailing CRLF
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Tokenize splits an inline command line on whitespace, treating a run of
// characters delimited by matching single or double quotes as one token
// even if it contains spaces. The outer quote characters are stripped
// from the resulting token; there is no escape sequence, matching §6's
// literal description of the protocol.
func Tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := byte(0)
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			inQuote = c
			hasToken = true
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
			hasToken = true
		}
	}
	flush()

	return tokens
}
