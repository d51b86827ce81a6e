package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/szt-redis/moonlight-kv/internal/resp"
	"github.com/szt-redis/moonlight-kv/internal/storage"
)

func del(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 1 {
		return wrongArgs("DEL")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	count := 0
	for _, k := range args {
		if shard.Delete(k) {
			count++
		}
	}
	return resp.MakeInteger(int64(count))
}

func exists(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 1 {
		return wrongArgs("EXISTS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	count := 0
	for _, k := range args {
		if shard.Exists(k) {
			count++
		}
	}
	return resp.MakeInteger(int64(count))
}

func typeCmd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("TYPE")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	v, ok := shard.Get(args[0])
	if !ok {
		return resp.MakeSimpleString("none")
	}
	return resp.MakeSimpleString(v.Kind.String())
}

func expire(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("EXPIRE")
	}
	secs, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	if shard.Expire(args[0], time.Duration(secs)*time.Second) {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

func ttl(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("TTL")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	ms := shard.TTL(args[0])
	switch ms {
	case storage.TTLAbsent, storage.TTLNoTimeout:
		return resp.MakeInteger(ms)
	}
	return resp.MakeInteger((ms + 999) / 1000)
}

func pttl(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("PTTL")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	return resp.MakeInteger(shard.TTL(args[0]))
}

func persist(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("PERSIST")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	if shard.Persist(args[0]) {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

func keys(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("KEYS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	pattern := args[0]
	var out []resp.Value
	for _, k := range shard.Keys() {
		if storage.MatchPattern(pattern, k) {
			out = append(out, resp.MakeBulkString(k))
		}
	}
	return resp.MakeArray(out)
}

func flushdb(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 0 {
		return wrongArgs("FLUSHDB")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	shard.Clear()
	return resp.MakeSimpleString("OK")
}

func selectCmd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("SELECT")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	if i < 0 || i >= e.manager.Count() {
		return resp.MakeError("ERR unknown shard index")
	}
	p.SetShard(i)
	return resp.MakeSimpleString("OK")
}

func ping(e *Engine, p *Peer, args []string) resp.Value {
	switch len(args) {
	case 0:
		return resp.MakeSimpleString("PONG")
	case 1:
		return resp.MakeBulkString(args[0])
	default:
		return wrongArgs("PING")
	}
}

func echo(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("ECHO")
	}
	return resp.MakeBulkString(args[0])
}

// info reports the node's own replication role the way §9's open question
// demands: from the engine's own nodeRole state, never inferred from
// whether cluster mode happens to be enabled.
func info(e *Engine, p *Peer, args []string) resp.Value {
	role, masterHost, masterPort := e.roleInfo()

	var b strings.Builder
	b.WriteString("# Replication\r\n")
	b.WriteString("role:" + role + "\r\n")
	if role == "slave" {
		b.WriteString("master_host:" + masterHost + "\r\n")
		b.WriteString("master_port:" + strconv.Itoa(masterPort) + "\r\n")
	}
	b.WriteString("connected_clients:1\r\n")
	b.WriteString("# Server\r\n")
	b.WriteString("databases:" + strconv.Itoa(e.manager.Count()) + "\r\n")
	return resp.MakeBulkString(b.String())
}
