package server

import (
	"errors"
	"fmt"

	"github.com/szt-redis/moonlight-kv/internal/resp"
	"github.com/szt-redis/moonlight-kv/internal/storage"
)

// command is anything the dispatcher can execute by name. commandFunc
// adapts a plain function, mirroring the teacher's own command interface.
type command interface {
	execute(e *Engine, p *Peer, args []string) resp.Value
}

type commandFunc func(e *Engine, p *Peer, args []string) resp.Value

func (f commandFunc) execute(e *Engine, p *Peer, args []string) resp.Value {
	return f(e, p, args)
}

// wrongArgs is the protocol error for an arity mismatch (§7.1).
func wrongArgs(name string) resp.Value {
	return resp.MakeErrorWrongNumberOfArguments(name)
}

// errToValue maps a storage-layer error to the RESP error reply the
// taxonomy in §7 calls for.
func errToValue(err error) resp.Value {
	if err == nil {
		return resp.MakeSimpleString("OK")
	}

	var wrongType *storage.ErrWrongType
	if errors.As(err, &wrongType) {
		return resp.MakeError(wrongType.Error())
	}
	switch {
	case errors.Is(err, storage.ErrNoSuchKey):
		return resp.MakeError("ERR no such key")
	case errors.Is(err, storage.ErrIndexOutOfRange):
		return resp.MakeError("ERR index out of range")
	case errors.Is(err, storage.ErrNotAnInteger):
		return resp.MakeError("ERR value is not an integer or out of range")
	case errors.Is(err, storage.ErrNotAFloat):
		return resp.MakeError("ERR value is not a valid float")
	default:
		return resp.MakeError(fmt.Sprintf("ERR %s", err.Error()))
	}
}

// shardFor resolves the shard currently selected by p, surfacing the
// argument-domain "unknown shard index" error if the manager was shrunk
// out from under a stale SELECT (shouldn't happen in practice since the
// shard count is fixed for the process lifetime, but Shard already
// checks this so there's no reason to skip it).
func shardFor(e *Engine, p *Peer) (*storage.Shard, error) {
	return e.manager.Shard(p.Shard())
}

// isWriteCommand reports whether name mutates the keyspace, per the
// taxonomy used for both append-log replication and READONLY rejection.
func isWriteCommand(name string) bool {
	switch name {
	case "SET", "DEL", "EXPIRE", "PERSIST", "FLUSHDB",
		"GETSET", "INCR", "INCRBY", "DECR", "DECRBY",
		"LPUSH", "RPUSH", "LPOP", "RPOP", "LSET", "LREM",
		"SADD", "SREM", "SPOP",
		"HSET", "HDEL", "HMSET", "HSETNX", "HINCRBY",
		"ZADD", "ZINCRBY", "ZREM":
		return true
	}
	return false
}
