package cluster

import (
	"sort"

	"go.uber.org/zap"
)

// TriggerFailover selects a new master among failedMasterID's online
// slaves (most-recent-heartbeat wins) and broadcasts FAILOVER_START,
// applying it locally as well. The broadcast goes to every registry entry,
// which may include this node; applying the same failover twice changes
// nothing the second time. Invoked by the
// status timer the instant it ages a master node to offline.
func (g *Gossiper) TriggerFailover(failedMasterID string) {
	newMasterID := g.pickNewMaster(failedMasterID)
	if newMasterID == "" {
		g.logger.Warn("failover triggered but no online candidate found", zap.String("failed_master", failedMasterID))
		return
	}

	payload := failoverPayload{FailedMasterID: failedMasterID, NewMasterID: newMasterID}
	g.applyFailoverStart(failedMasterID, newMasterID)
	g.broadcast(Message{Type: MsgFailoverStart, Payload: payload})
	g.broadcast(Message{Type: MsgFailoverEnd, Payload: payload})
}

// pickNewMaster implements the new-master selection rule: the slave of
// failedMasterID with the most recent lastHeartbeat among those currently
// online.
func (g *Gossiper) pickNewMaster(failedMasterID string) string {
	var candidates []Node
	for _, n := range g.registry.All() {
		if n.Role == RoleSlave && n.MasterID == failedMasterID && n.Status == StatusOnline {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastHeartbeat.After(candidates[j].LastHeartbeat)
	})
	return candidates[0].ID
}

// applyFailoverStart updates the registry's view of the promoted and
// rebinding nodes, then checks whether this node itself is one of them.
func (g *Gossiper) applyFailoverStart(failedMasterID, newMasterID string) {
	g.registry.Update(newMasterID, func(n *Node) {
		n.Role = RoleMaster
		n.MasterID = ""
	})
	for _, n := range g.registry.All() {
		if n.Role == RoleSlave && n.MasterID == failedMasterID {
			g.registry.Update(n.ID, func(node *Node) { node.MasterID = newMasterID })
		}
	}

	g.mu.Lock()
	self := g.selfID
	g.mu.Unlock()

	switch self {
	case newMasterID:
		g.promoteSelf()
	default:
		g.rebindSelfIfFollowing(failedMasterID, newMasterID)
	}
}

// promoteSelf flips this node's own role to master and fires onRoleChange
// so the owning process can swap its replication server/puller.
func (g *Gossiper) promoteSelf() {
	g.mu.Lock()
	g.selfRole = RoleMaster
	g.masterID = ""
	g.mu.Unlock()

	if g.onRoleChange != nil {
		g.onRoleChange(RoleMaster, "")
	}
}

// rebindSelfIfFollowing retargets this node's puller at the new master
// when it was following the one that just failed.
func (g *Gossiper) rebindSelfIfFollowing(failedMasterID, newMasterID string) {
	g.mu.Lock()
	following := g.selfRole == RoleSlave && g.masterID == failedMasterID
	if following {
		g.masterID = newMasterID
	}
	g.mu.Unlock()

	if following && g.onRoleChange != nil {
		g.onRoleChange(RoleSlave, newMasterID)
	}
}
