package server

import (
	"strconv"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

func hset(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 3 || len(args)%2 != 1 {
		return wrongArgs("HSET")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	fields := make(map[string]string, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		fields[args[i]] = args[i+1]
	}
	n, err := shard.HSet(args[0], fields)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

// hmset is HSET's older alias: same field/value grammar, but always
// replies with a simple-string OK rather than a created-field count.
func hmset(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 3 || len(args)%2 != 1 {
		return wrongArgs("HMSET")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	fields := make(map[string]string, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		fields[args[i]] = args[i+1]
	}
	if _, err := shard.HSet(args[0], fields); err != nil {
		return errToValue(err)
	}
	return resp.MakeSimpleString("OK")
}

func hsetnx(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("HSETNX")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	set, err := shard.HSetNX(args[0], args[1], args[2])
	if err != nil {
		return errToValue(err)
	}
	if set {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

func hget(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("HGET")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	v, ok, err := shard.HGet(args[0], args[1])
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(v)
}

func hdel(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("HDEL")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.HDel(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func hexists(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("HEXISTS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	ok, err := shard.HExists(args[0], args[1])
	if err != nil {
		return errToValue(err)
	}
	if ok {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

func hgetall(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("HGETALL")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	fields, err := shard.HGetAll(args[0])
	if err != nil {
		return errToValue(err)
	}
	keysSorted, err := shard.HKeys(args[0])
	if err != nil {
		return errToValue(err)
	}
	out := make([]resp.Value, 0, 2*len(keysSorted))
	for _, f := range keysSorted {
		out = append(out, resp.MakeBulkString(f), resp.MakeBulkString(fields[f]))
	}
	return resp.MakeArray(out)
}

func hkeys(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("HKEYS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	fields, err := shard.HKeys(args[0])
	if err != nil {
		return errToValue(err)
	}
	out := make([]resp.Value, len(fields))
	for i, f := range fields {
		out[i] = resp.MakeBulkString(f)
	}
	return resp.MakeArray(out)
}

func hvals(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("HVALS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	vals, err := shard.HVals(args[0])
	if err != nil {
		return errToValue(err)
	}
	out := make([]resp.Value, len(vals))
	for i, v := range vals {
		out[i] = resp.MakeBulkString(v)
	}
	return resp.MakeArray(out)
}

func hlen(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("HLEN")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.HLen(args[0])
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func hmget(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("HMGET")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	out := make([]resp.Value, len(args)-1)
	for i, f := range args[1:] {
		v, ok, err := shard.HGet(args[0], f)
		if err != nil {
			return errToValue(err)
		}
		if !ok {
			out[i] = resp.MakeNilBulkString()
			continue
		}
		out[i] = resp.MakeBulkString(v)
	}
	return resp.MakeArray(out)
}

func hincrby(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("HINCRBY")
	}
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return resp.MakeError("ERR value is not an integer or out of range")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	result, err := shard.HIncrBy(args[0], args[1], n)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(result)
}
