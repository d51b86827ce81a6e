package server

import (
	"strconv"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

func lpush(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("LPUSH")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.LPush(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func rpush(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("RPUSH")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.RPush(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func lpop(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("LPOP")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	v, ok, err := shard.LPop(args[0])
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(v)
}

func rpop(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("RPOP")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	v, ok, err := shard.RPop(args[0])
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(v)
}

func llen(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("LLEN")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.LLen(args[0])
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func lrange(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("LRANGE")
	}
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	items, err := shard.LRange(args[0], start, stop)
	if err != nil {
		return errToValue(err)
	}
	out := make([]resp.Value, len(items))
	for i, it := range items {
		out[i] = resp.MakeBulkString(it)
	}
	return resp.MakeArray(out)
}

func lindex(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("LINDEX")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	v, ok, err := shard.LIndex(args[0], idx)
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(v)
}

func lset(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("LSET")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	if err := shard.LSet(args[0], idx, args[2]); err != nil {
		return errToValue(err)
	}
	return resp.MakeSimpleString("OK")
}

func lrem(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("LREM")
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.LRem(args[0], count, args[2])
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}
