package cluster

import "time"

// MessageKind enumerates the gossip protocol's message types (§4.7).
type MessageKind string

const (
	MsgHeartbeat     MessageKind = "HEARTBEAT"
	MsgPing          MessageKind = "PING"
	MsgPong          MessageKind = "PONG"
	MsgNodeAdded     MessageKind = "NODE_ADDED"
	MsgNodeRemoved   MessageKind = "NODE_REMOVED"
	MsgFailoverStart MessageKind = "FAILOVER_START"
	MsgFailoverEnd   MessageKind = "FAILOVER_END"
	MsgSyncRequest   MessageKind = "SYNC_REQUEST"
	MsgSyncResponse  MessageKind = "SYNC_RESPONSE"
)

// Message is the envelope exchanged between nodes. ReceiverID is empty for
// broadcasts. Payload is kind-specific (e.g. a nodeInfo for NODE_ADDED, a
// failoverPayload for FAILOVER_START/END); transport as JSON keeps it
// untyped on the wire.
type Message struct {
	Type       MessageKind `json:"type"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id,omitempty"`
	Payload    any         `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// nodeInfo is the JSON shape of a Node used on the wire for NODE_ADDED and
// the initial handshake — narrower than Node since Status/LastHeartbeat
// are locally observed, not transmitted.
type nodeInfo struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Role     Role   `json:"role"`
	MasterID string `json:"master_id,omitempty"`
}

// failoverPayload is the FAILOVER_START/FAILOVER_END payload shape.
type failoverPayload struct {
	FailedMasterID string `json:"failed_master_id"`
	NewMasterID    string `json:"new_master_id"`
}
