package replication

import (
	"fmt"
	"net"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/storage"
	"go.uber.org/zap"
)

// Server is the master-side replication handler (C8): it accepts
// connections on the replication port, reads a pull request, serializes
// the current shard vector, and replies — one independent goroutine per
// connection, grounded on the teacher's per-connection accept loop in
// its command server.
type Server struct {
	listener net.Listener
	m        *storage.Manager
	logger   *zap.Logger
	stop     chan struct{}
}

// Listen binds the replication port for commandPort, trying the primary
// port first and the fallback if that fails.
func Listen(host string, commandPort int, m *storage.Manager, logger *zap.Logger) (*Server, error) {
	primary := fmt.Sprintf("%s:%d", host, commandPort+PortOffset)
	ln, err := net.Listen("tcp", primary)
	if err != nil {
		fallback := fmt.Sprintf("%s:%d", host, commandPort+PortOffsetFallback)
		ln, err = net.Listen("tcp", fallback)
		if err != nil {
			return nil, fmt.Errorf("binding replication port (primary %s, fallback %s): %w", primary, fallback, err)
		}
		logger.Warn("replication server bound fallback port", zap.String("addr", fallback))
	}

	return &Server{
		listener: ln,
		m:        m,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Addr returns the bound replication address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve accepts connections until Stop is called. Each connection is
// served on its own goroutine so concurrent slaves never block each other.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.logger.Error("replication accept error", zap.Error(err))
				return
			}
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	req, err := readRequest(conn)
	if err != nil {
		s.logger.Debug("replication request read failed", zap.Error(err))
		return
	}

	if err := writeResponseHeader(conn, time.Now().UnixMilli()); err != nil {
		s.logger.Debug("replication response header write failed", zap.Error(err))
		return
	}
	if err := s.m.EncodeSnapshot(conn); err != nil {
		s.logger.Error("replication snapshot encode failed",
			zap.String("node", req.NodeID), zap.Error(err))
		return
	}

	s.logger.Debug("replication pull served", zap.String("node", req.NodeID))
}

// Stop closes the listener, causing Serve to return.
func (s *Server) Stop() {
	close(s.stop)
	s.listener.Close() //nolint:errcheck
}
