package server

import (
	"strings"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself
	flags    []string // read, write, fast, denyoom, etc
	firstKey int      // 1-based index of the first key
	lastKey  int      // 1-based index of the last key
	step     int      // Step count for finding keys
}

var commandRegistry = map[string]commandMetadata{
	"PING":   {-1, []string{"fast", "stale"}, 0, 0, 0},
	"ECHO":   {2, []string{"fast"}, 0, 0, 0},
	"SELECT": {2, []string{"loading", "fast"}, 0, 0, 0},
	"INFO":   {-1, []string{"loading", "stale"}, 0, 0, 0},

	"GET":    {2, []string{"readonly", "fast"}, 1, 1, 1},
	"SET":    {-3, []string{"write", "denyoom"}, 1, 1, 1},
	"GETSET": {3, []string{"write", "denyoom"}, 1, 1, 1},
	"INCR":   {2, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"DECR":   {2, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"INCRBY": {3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"DECRBY": {3, []string{"write", "denyoom", "fast"}, 1, 1, 1},

	"DEL":     {-2, []string{"write"}, 1, -1, 1},
	"EXISTS":  {-2, []string{"readonly", "fast"}, 1, -1, 1},
	"TYPE":    {2, []string{"readonly", "fast"}, 1, 1, 1},
	"TTL":     {2, []string{"readonly", "fast"}, 1, 1, 1},
	"PTTL":    {2, []string{"readonly", "fast"}, 1, 1, 1},
	"EXPIRE":  {3, []string{"write", "fast"}, 1, 1, 1},
	"PERSIST": {2, []string{"write", "fast"}, 1, 1, 1},
	"KEYS":    {2, []string{"readonly"}, 0, 0, 0},
	"FLUSHDB": {1, []string{"write"}, 0, 0, 0},
	"COMMAND": {-1, []string{"random", "loading", "stale"}, 0, 0, 0},

	"LPUSH":  {-3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"RPUSH":  {-3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"LPOP":   {2, []string{"write", "fast"}, 1, 1, 1},
	"RPOP":   {2, []string{"write", "fast"}, 1, 1, 1},
	"LLEN":   {2, []string{"readonly", "fast"}, 1, 1, 1},
	"LRANGE": {4, []string{"readonly"}, 1, 1, 1},

	"SADD":     {-3, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"SREM":     {-3, []string{"write", "fast"}, 1, 1, 1},
	"SMEMBERS": {2, []string{"readonly"}, 1, 1, 1},
	"SCARD":    {2, []string{"readonly", "fast"}, 1, 1, 1},

	"HSET":    {-4, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"HGET":    {3, []string{"readonly", "fast"}, 1, 1, 1},
	"HDEL":    {-3, []string{"write", "fast"}, 1, 1, 1},
	"HGETALL": {2, []string{"readonly"}, 1, 1, 1},

	"ZADD":   {-4, []string{"write", "denyoom", "fast"}, 1, 1, 1},
	"ZRANGE": {-4, []string{"readonly"}, 1, 1, 1},
	"ZSCORE": {3, []string{"readonly", "fast"}, 1, 1, 1},
	"ZREM":   {-3, []string{"write", "fast"}, 1, 1, 1},

	"ROLE":     {1, []string{"fast", "loading", "stale"}, 0, 0, 0},
	"SLAVEOF":  {3, []string{"admin", "stale"}, 0, 0, 0},
	"READONLY": {1, []string{"fast", "loading", "stale"}, 0, 0, 0},
}

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
	since      string
}

// commandDocsRegistry documentation registry. Coverage tracks the more
// frequently reached-for half of commandRegistry; the rest still run
// fine, they just don't show up in COMMAND DOCS.
var commandDocsRegistry = map[string]commandDoc{
	"PING": {"Ping the server.", "O(1)", "connection", "1.0.0"},
	"ECHO": {"Echo the given string.", "O(1)", "connection", "1.0.0"},
	"SELECT": {"Change the selected database for the current connection.",
		"O(1)", "connection", "1.0.0"},
	"INFO": {"Get information and statistics about the server.", "O(1)", "server", "1.0.0"},

	"GET":    {"Get the value of a key.", "O(1)", "string", "1.0.0"},
	"SET":    {"Set the string value of a key.", "O(1)", "string", "1.0.0"},
	"GETSET": {"Set the string value of a key and return its old value.", "O(1)", "string", "1.0.0"},
	"INCR":   {"Increment the integer value of a key by one.", "O(1)", "string", "1.0.0"},
	"DECR":   {"Decrement the integer value of a key by one.", "O(1)", "string", "1.0.0"},
	"INCRBY": {"Increment the integer value of a key by the given amount.", "O(1)", "string", "1.0.0"},

	"DEL": {"Delete a key.", "O(N) where N is the number of keys that will be removed.", "generic", "1.0.0"},
	"EXISTS": {"Determine if a key exists.",
		"O(N) where N is the number of keys to check.", "generic", "1.0.0"},
	"TYPE":    {"Determine the type stored at key.", "O(1)", "generic", "1.0.0"},
	"TTL":     {"Get the time to live for a key in seconds.", "O(1)", "generic", "1.0.0"},
	"PTTL":    {"Get the time to live for a key in milliseconds.", "O(1)", "generic", "1.0.0"},
	"EXPIRE":  {"Set a key's time to live in seconds.", "O(1)", "generic", "1.0.0"},
	"PERSIST": {"Remove the expiration from a key.", "O(1)", "generic", "1.0.0"},
	"KEYS":    {"Find all keys matching the given pattern.", "O(N)", "generic", "1.0.0"},
	"FLUSHDB": {"Remove all keys from the selected database.", "O(N)", "generic", "1.0.0"},
	"COMMAND": {"Get array of command details.",
		"O(N) where N is the number of commands to look up.", "server", "1.0.0"},

	"LPUSH":  {"Prepend one or more values to a list.", "O(1)", "list", "1.0.0"},
	"RPUSH":  {"Append one or more values to a list.", "O(1)", "list", "1.0.0"},
	"LRANGE": {"Get a range of elements from a list.", "O(S+N)", "list", "1.0.0"},

	"SADD":     {"Add one or more members to a set.", "O(1) per member", "set", "1.0.0"},
	"SMEMBERS": {"Get all the members in a set.", "O(N)", "set", "1.0.0"},

	"HSET":    {"Set the value of one or more hash fields.", "O(1) per field", "hash", "1.0.0"},
	"HGETALL": {"Get all fields and values in a hash.", "O(N)", "hash", "1.0.0"},

	"ZADD":   {"Add one or more members to a sorted set, or update their score.", "O(log(N)) per member", "zset", "1.0.0"},
	"ZRANGE": {"Return a range of members in a sorted set, by index.", "O(log(N)+M)", "zset", "1.0.0"},

	"ROLE":     {"Return the replication role of this node.", "O(1)", "replication", "1.0.0"},
	"SLAVEOF":  {"Make this node a replica of another, or promote it to master.", "O(1)", "replication", "1.0.0"},
	"READONLY": {"Confirm that reads against a replica are allowed.", "O(1)", "replication", "1.0.0"},
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

func makeInfoCmdArray(name string) []resp.Value {
	return []resp.Value{
		resp.MakeBulkString(name),
		resp.MakeInteger(int64(commandRegistry[name].arity)),
		makeFlagsArray(commandRegistry[name].flags),
		resp.MakeInteger(int64(commandRegistry[name].firstKey)),
		resp.MakeInteger(int64(commandRegistry[name].lastKey)),
		resp.MakeInteger(int64(commandRegistry[name].step)),
	}
}

func getAllCommands() resp.Value {
	cmdArray := make([]resp.Value, 0, len(commandRegistry))
	for name := range commandRegistry {
		details := makeInfoCmdArray(name)
		cmdArray = append(cmdArray, resp.MakeArray(details))
	}
	return resp.MakeArray(cmdArray)
}

// getCommandsDocs returns documentation for specified commands or all
// commands. Format: [Name, [Summary, val, Since, val...], Name, [...]]
func getCommandsDocs(args []string) resp.Value {
	var targets []string

	if len(args) == 0 {
		targets = make([]string, 0, len(commandDocsRegistry))
		for name := range commandDocsRegistry {
			targets = append(targets, name)
		}
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(arg))
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, name := range targets {
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, resp.MakeBulkString(name))

		props := []resp.Value{
			resp.MakeBulkString("summary"),
			resp.MakeBulkString(doc.summary),
			resp.MakeBulkString("since"),
			resp.MakeBulkString(doc.since),
			resp.MakeBulkString("group"),
			resp.MakeBulkString(doc.group),
			resp.MakeBulkString("complexity"),
			resp.MakeBulkString(doc.complexity),
		}

		result = append(result, resp.MakeArray(props))
	}

	return resp.MakeArray(result)
}

// cmd implements COMMAND and its DOCS subcommand.
func cmd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) > 0 && strings.EqualFold(args[0], "docs") {
		return getCommandsDocs(args[1:])
	}
	return getAllCommands()
}
