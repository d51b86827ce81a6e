package testpipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestPipelining(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6380",
	})
	defer rdb.Close()

	ctx := context.Background()

	count := 10_000
	pipe := rdb.Pipeline()

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("pipe_key_%d", i)
		val := fmt.Sprintf("val_%d", i)
		pipe.Set(ctx, key, val, 0)
	}

	getResults := make([]*redis.StringCmd, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("pipe_key_%d", i)
		getResults[i] = pipe.Get(ctx, key)
	}

	start := time.Now()
	_, err := pipe.Exec(ctx)
	elapsed := time.Since(start)

	assert.NoError(t, err, "Pipeline execution failed")
	fmt.Printf("Pipeline executed in %v\n", elapsed)

	for i := 0; i < count; i++ {
		expected := fmt.Sprintf("val_%d", i)
		val, err := getResults[i].Result()

		assert.NoError(t, err)
		assert.Equal(t, expected, val, "Key %d mismatch", i)
	}
}

// TestPipelinedDataStructures pipelines a batch of list, set, hash, and
// zset writes alongside an EXPIRE round trip, verifying every reply lands
// on the client in submission order.
func TestPipelinedDataStructures(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6380",
	})
	defer rdb.Close()

	ctx := context.Background()
	pipe := rdb.Pipeline()

	listKey := "pipe_list"
	setKey := "pipe_set"
	hashKey := "pipe_hash"
	zsetKey := "pipe_zset"
	ttlKey := "pipe_ttl"

	pipe.Del(ctx, listKey, setKey, hashKey, zsetKey, ttlKey)
	pipe.RPush(ctx, listKey, "a", "b", "c")
	pipe.SAdd(ctx, setKey, "x", "y", "z")
	pipe.HSet(ctx, hashKey, map[string]string{"f1": "v1", "f2": "v2"})
	pipe.ZAdd(ctx, zsetKey, redis.Z{Score: 1, Member: "one"}, redis.Z{Score: 2, Member: "two"})
	pipe.Set(ctx, ttlKey, "expiring", 0)
	pipe.Expire(ctx, ttlKey, 30*time.Second)

	lrangeCmd := pipe.LRange(ctx, listKey, 0, -1)
	smembersCmd := pipe.SMembers(ctx, setKey)
	hgetallCmd := pipe.HGetAll(ctx, hashKey)
	zrangeCmd := pipe.ZRangeWithScores(ctx, zsetKey, 0, -1)
	ttlCmd := pipe.TTL(ctx, ttlKey)

	_, err := pipe.Exec(ctx)
	assert.NoError(t, err, "pipeline exec failed")

	list, err := lrangeCmd.Result()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)

	members, err := smembersCmd.Result()
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, members)

	fields, err := hgetallCmd.Result()
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, fields)

	scored, err := zrangeCmd.Result()
	assert.NoError(t, err)
	assert.Len(t, scored, 2)
	assert.Equal(t, "one", scored[0].Member)
	assert.Equal(t, "two", scored[1].Member)

	ttl, err := ttlCmd.Result()
	assert.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)
}
