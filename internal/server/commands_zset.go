package server

import (
	"strconv"
	"strings"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

func zadd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 3 || len(args)%2 != 1 {
		return wrongArgs("ZADD")
	}
	pairs := make(map[string]float64, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		score, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return resp.MakeError("ERR value is not a valid float")
		}
		pairs[args[i+1]] = score
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.ZAdd(args[0], pairs)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func zcard(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 1 {
		return wrongArgs("ZCARD")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.ZCard(args[0])
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func zscore(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("ZSCORE")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	score, ok, err := shard.ZScore(args[0], args[1])
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(formatScore(score))
}

func zincrby(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("ZINCRBY")
	}
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return resp.MakeError("ERR value is not a valid float")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	result, err := shard.ZIncrBy(args[0], args[2], delta)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeBulkString(formatScore(result))
}

func zrem(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) < 2 {
		return wrongArgs("ZREM")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.ZRem(args[0], args[1:]...)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

func zrange(e *Engine, p *Peer, args []string) resp.Value {
	return zrangeImpl(e, p, args, "ZRANGE", false)
}

func zrevrange(e *Engine, p *Peer, args []string) resp.Value {
	return zrangeImpl(e, p, args, "ZREVRANGE", true)
}

func zrangeImpl(e *Engine, p *Peer, args []string, name string, reverse bool) resp.Value {
	if len(args) != 3 && len(args) != 4 {
		return wrongArgs(name)
	}
	withScores := false
	if len(args) == 4 {
		if strings.ToUpper(args[3]) != "WITHSCORES" {
			return resp.MakeError("ERR syntax error")
		}
		withScores = true
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
	var (
		names  []string
		scores []float64
	)
	if reverse {
		items, err := shard.ZRevRange(args[0], start, stop)
		if err != nil {
			return errToValue(err)
		}
		for _, m := range items {
			names = append(names, m.Member)
			scores = append(scores, m.Score)
		}
	} else {
		items, err := shard.ZRange(args[0], start, stop)
		if err != nil {
			return errToValue(err)
		}
		for _, m := range items {
			names = append(names, m.Member)
			scores = append(scores, m.Score)
		}
	}

	if !withScores {
		out := make([]resp.Value, len(names))
		for i, m := range names {
			out[i] = resp.MakeBulkString(m)
		}
		return resp.MakeArray(out)
	}
	out := make([]resp.Value, 0, 2*len(names))
	for i, m := range names {
		out = append(out, resp.MakeBulkString(m), resp.MakeBulkString(formatScore(scores[i])))
	}
	return resp.MakeArray(out)
}

func zrank(e *Engine, p *Peer, args []string) resp.Value {
	return zrankImpl(e, p, args, "ZRANK", false)
}

func zrevrank(e *Engine, p *Peer, args []string) resp.Value {
	return zrankImpl(e, p, args, "ZREVRANK", true)
}

func zrankImpl(e *Engine, p *Peer, args []string, name string, reverse bool) resp.Value {
	if len(args) != 2 {
		return wrongArgs(name)
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	var rank int
	var ok bool
	if reverse {
		rank, ok, err = shard.ZRevRank(args[0], args[1])
	} else {
		rank, ok, err = shard.ZRank(args[0], args[1])
	}
	if err != nil {
		return errToValue(err)
	}
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeInteger(int64(rank))
}

func zcount(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 3 {
		return wrongArgs("ZCOUNT")
	}
	min, err1 := strconv.ParseFloat(args[1], 64)
	max, err2 := strconv.ParseFloat(args[2], 64)
	if err1 != nil || err2 != nil {
		return resp.MakeError("ERR min or max is not a float")
	}
	shard, err := shardFor(e, p)
	if err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	n, err := shard.ZCount(args[0], min, max)
	if err != nil {
		return errToValue(err)
	}
	return resp.MakeInteger(int64(n))
}

// formatScore renders a zset score the way Redis replies do: as compact
// decimal text rather than Go's default float formatting.
func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
