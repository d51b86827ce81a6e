package server

import (
	"strconv"
	"strings"

	"github.com/szt-redis/moonlight-kv/internal/resp"
)

// readonly is a no-op acknowledgement. Write rejection on a slave is
// enforced centrally in the dispatcher (§9's open question: a slave
// always rejects writes, READONLY just lets a client confirm the mode it
// is already in).
func readonly(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 0 {
		return wrongArgs("READONLY")
	}
	return resp.MakeSimpleString("OK")
}

// roleCmd reports this node's replication role and, for a slave, the
// master it currently follows, sourced from the engine's own role state
// rather than inferred from cluster membership.
func roleCmd(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 0 {
		return wrongArgs("ROLE")
	}
	nodeRole, masterHost, masterPort := e.roleInfo()
	if nodeRole == "slave" {
		return resp.MakeArray([]resp.Value{
			resp.MakeBulkString("slave"),
			resp.MakeBulkString(masterHost),
			resp.MakeInteger(int64(masterPort)),
		})
	}
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString("master"),
		resp.MakeInteger(0),
	})
}

// slaveof switches this node's replication role at runtime. "SLAVEOF NO
// ONE" promotes to master; any other host/port pair starts following
// that master, tearing down whichever replication role was previously
// active.
func slaveof(e *Engine, p *Peer, args []string) resp.Value {
	if len(args) != 2 {
		return wrongArgs("SLAVEOF")
	}
	if strings.EqualFold(args[0], "no") && strings.EqualFold(args[1], "one") {
		if err := e.promoteToMaster(); err != nil {
			return resp.MakeError("ERR " + err.Error())
		}
		return resp.MakeSimpleString("OK")
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.MakeError("ERR invalid master port")
	}
	if err := e.becomeSlaveOf(args[0], port); err != nil {
		return resp.MakeError("ERR " + err.Error())
	}
	return resp.MakeSimpleString("OK")
}
