package server

import (
	"strconv"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

func sadd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("SADD")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.SAdd(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func srem(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("SREM")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.SRem(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func smembers(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("SMEMBERS")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	members, err := shard.SMembers(args[0])
	if err != nil {
		return errToValue(err)
	}
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = resp.MakeBulkString(m)
	}
	return resp.MakeArray(out)
}

func sismember(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("SISMEMBER")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	ok, err := shard.SIsMember(args[0], args[1])
	if err != nil {
		return errToValue(err)
	}
	if ok {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

func scard(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("SCARD")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.SCard(args[0])
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func spop(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 && len(args) != 2 {
		return wrongArgs("SPOP")
	}
	n := 1
	if len(args) == 2 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return resp.MakeError("ERR value is not an integer or out of range")
		}
		n = parsed
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	popped, err := shard.SPopN(args[0], n)
	if err != nil {
		return errToValue(err)
	}
	if len(args) == 1 {
		if len(popped) == 0 {
			return resp.MakeNilBulkString()
		}
		return resp.MakeBulkString(popped[0])
	}
	out := make([]resp.Value, len(popped))
	for i, m := range popped {
		out[i] = resp.MakeBulkString(m)
	}
	return resp.MakeArray(out)
}

func srandmember(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 && len(args) != 2 {
		return wrongArgs("SRANDMEMBER")
	}
	withCount := len(args) == 2
	n := 0
	if withCount {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return resp.MakeError("ERR value is not an integer or out of range")
		}
		n = parsed
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	members, err := shard.SRandMember(args[0], n)
	if err != nil {
		return errToValue(err)
	}
	if !withCount {
		if len(members) == 0 {
			return resp.MakeNilBulkString()
		}
		return resp.MakeBulkString(members[0])
	}
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = resp.MakeBulkString(m)
	}
	return resp.MakeArray(out)
}

func sinter(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 1 {
		return wrongArgs("SINTER")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	members, err := shard.SInter(args)
	if err != nil {
		return errToValue(err)
	}
	return setopResult(members)
}

func sunion(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 1 {
		return wrongArgs("SUNION")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	members, err := shard.SUnion(args)
	if err != nil {
		return errToValue(err)
	}
	return setopResult(members)
}

func sdiff(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 1 {
		return wrongArgs("SDIFF")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	members, err := shard.SDiff(args)
	if err != nil {
		return errToValue(err)
	}
	return setopResult(members)
}

func setopResult(members []string) resp.Value {
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = resp.MakeBulkString(m)
	}
	return resp.MakeArray(out)
}
