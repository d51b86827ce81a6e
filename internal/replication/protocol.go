// Package replication implements the slave-side pull loop (C7) and the
// master-side sync server (C8): a periodic full-state pull over a
// dedicated binary port. There is no streaming, no oplog, no
// checkpointing — eventual consistency with a staleness bound of roughly
// one pull period plus one serialization.
package replication

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PortOffset is added to a node's command port to get its primary
// replication port; PortOffsetFallback is tried if binding the primary
// port fails.
const (
	PortOffset         = 11000
	PortOffsetFallback = 11001
)

func writeInt64(w io.Writer, n int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeInt64(w, int64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readInt64(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > 1024*1024 {
		return "", fmt.Errorf("framed string length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// pullRequest is sent slave -> master. LastSyncTimestamp is advisory only;
// the master always returns a full snapshot rather than a delta.
type pullRequest struct {
	NodeID            string
	LastSyncTimestamp int64
}

func writeRequest(w io.Writer, req pullRequest) error {
	if err := writeString(w, req.NodeID); err != nil {
		return err
	}
	return writeInt64(w, req.LastSyncTimestamp)
}

func readRequest(r io.Reader) (pullRequest, error) {
	nodeID, err := readString(r)
	if err != nil {
		return pullRequest{}, err
	}
	ts, err := readInt64(r)
	if err != nil {
		return pullRequest{}, err
	}
	return pullRequest{NodeID: nodeID, LastSyncTimestamp: ts}, nil
}

// writeResponseHeader writes the master -> slave response's fixed header
// (serverTimestamp); the snapshot payload itself follows immediately,
// written directly by storage.Manager.EncodeSnapshot since that stream is
// already self-describing (leading shard count).
func writeResponseHeader(w io.Writer, serverTimestamp int64) error {
	return writeInt64(w, serverTimestamp)
}

func readResponseHeader(r io.Reader) (serverTimestamp int64, err error) {
	return readInt64(r)
}
