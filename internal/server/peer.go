package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

// welcomeBanner is the literal handshake line spec.md's wire section
// names: the bundled line-oriented client blocks on reading it before
// sending its first command.
const welcomeBanner = "+OK Welcome to Java-Redis Server\n"

// greetPeekWindow bounds how long Greet waits to see whether the client
// has already started talking before deciding to send the banner.
const greetPeekWindow = 50 * time.Millisecond

// Peer represents a connected client: a network connection, the request
// reader that sniffs inline vs multibulk framing, and the RESP response
// encoder. Each connection also carries the mutable per-session state a
// command can observe or change: which shard SELECT has pointed it at.
// A slave node's read-only rule is enforced by Engine.Execute, not here.
type Peer struct {
	conn   net.Conn
	reader *resp.RequestReader
	writer *resp.Encoder
	mu     sync.Mutex

	shard int
}

// NewPeer initializes a new client peer from a network connection. New
// connections start selected on shard 0, matching a fresh Redis client.
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:   conn,
		reader: resp.NewRequestReader(conn),
		writer: resp.NewEncoder(conn),
	}
}

// Send encodes and writes a RESP value to the client. Thread-safe so a
// background push (not currently used, but kept consistent with the
// shared-connection discipline elsewhere) could call it from another
// goroutine.
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Write(v)
}

// Greet writes the plain-text welcome banner to clients that haven't
// already started talking. A RESP client (go-redis and every other
// multibulk-speaking library) sends its first request the instant it
// connects; an unsolicited banner ahead of that request would be read as
// the reply to it and desync every reply after. The bundled inline/
// telnet-style client, by contrast, blocks on reading the banner before
// sending anything. A short read deadline tells the two apart: if
// nothing has arrived within it, this connection is waiting on us.
func (p *Peer) Greet() error {
	if err := p.conn.SetReadDeadline(time.Now().Add(greetPeekWindow)); err != nil {
		return err
	}
	_, peekErr := p.reader.Peek()
	if err := p.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	if peekErr == nil {
		// Client spoke first; leave it alone.
		return nil
	}
	netErr, ok := peekErr.(net.Error)
	if !ok || !netErr.Timeout() {
		return peekErr
	}

	_, err := io.WriteString(p.conn, welcomeBanner)
	return err
}

// ReadRequest reads and tokenizes the next request from the client.
func (p *Peer) ReadRequest() (string, []string, error) {
	return p.reader.ReadRequest()
}

// Close terminates the underlying network connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Flush sends all buffered response data to the client.
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}

// InputBuffered returns the number of bytes already sitting in the read
// buffer, used to decide whether more pipelined requests are waiting
// before paying for a network flush.
func (p *Peer) InputBuffered() int {
	return p.reader.Buffered()
}

// Shard returns the index of the currently selected shard (SELECT).
func (p *Peer) Shard() int { return p.shard }

// SetShard updates the currently selected shard index.
func (p *Peer) SetShard(i int) { p.shard = i }
