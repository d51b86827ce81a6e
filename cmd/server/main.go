package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/config"
	"github.com/szt-redis/moonlight-kv/internal/logger"
	"github.com/szt-redis/moonlight-kv/internal/server"
	"go.uber.org/zap"
)

// handleConnection serves one client connection until it disconnects or
// a read fails. It greets the client per the wire handshake, then reads
// requests via Peer.ReadRequest, which sniffs RESP multibulk framing vs a
// plain inline command line.
func handleConnection(conn net.Conn, engine *server.Engine, log *zap.Logger) {
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", conn.RemoteAddr().String()))
	}

	peer := server.NewPeer(conn)
	defer func() {
		peer.Close() //nolint:errcheck
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected", zap.String("addr", conn.RemoteAddr().String()))
		}
	}()

	if err := peer.Greet(); err != nil && err != io.EOF {
		log.Warn("greeting failed", zap.Error(err))
		return
	}

	for {
		name, args, err := peer.ReadRequest()
		if err != nil {
			if err != io.EOF {
				log.Warn("read request failed", zap.Error(err))
			}
			return
		}
		if name == "" {
			continue
		}

		result := engine.Execute(peer, name, args)

		if err := peer.Send(result); err != nil {
			log.Error("error writing response", zap.Error(err))
			return
		}

		if peer.InputBuffered() == 0 {
			if err := peer.Flush(); err != nil {
				return
			}
		}
	}
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync() //nolint:errcheck

	log.Info("moonlight-kv starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
		zap.String("role", cfg.Replication.Role),
	)

	engine, err := server.NewEngine(cfg, log)
	if err != nil {
		log.Error("cant initialize engine", zap.Error(err))
		return
	}

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("listener error", zap.Error(err))
		return
	}
	log.Info("listening on", zap.String("address", address))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Error("accept error", zap.Error(err))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				handleConnection(conn, engine, log)
			}()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down...")

	listener.Close() //nolint:errcheck
	engine.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("all connections closed gracefully")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out, forcing exit", zap.Duration("timeout", 5*time.Second))
	}

	log.Info("moonlight-kv stopped")
}
