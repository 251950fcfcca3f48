// Package rpctracker hands out RPC ids for one client session and computes the
// acknowledgment watermark a server uses to drop deduplication state.
//
// At most WindowSize ids are outstanding at once. Once the window is full,
// NewRPCID returns 0 until the oldest outstanding RPC finishes. A Tracker is not
// safe for concurrent use.
package rpctracker

import (
	"errors"
	"fmt"
)

// ErrInvalidRPCID is returned by RPCFinished for ids that are not outstanding.
var ErrInvalidRPCID = errors.New("rpc id is not outstanding")

type Tracker struct {
	rpcs         []bool // completion flag per slot, indexed by id % len(rpcs)
	nextRPCID    uint64
	firstMissing uint64
}

// New returns a tracker allowing windowSize outstanding RPCs. Ids start at 1; 0 is
// reserved as the window-full sentinel.
func New(windowSize int) *Tracker {
	if windowSize <= 0 {
		panic(fmt.Sprintf("rpctracker: window size must be positive, got %d", windowSize))
	}
	return &Tracker{
		rpcs:         make([]bool, windowSize),
		nextRPCID:    1,
		firstMissing: 1,
	}
}

func (t *Tracker) slot(id uint64) int {
	return int(id % uint64(len(t.rpcs)))
}

// NewRPCID returns the id for a new linearizable RPC, or 0 when the oldest
// outstanding RPC is a full window behind. 0 is backpressure, not an error.
func (t *Tracker) NewRPCID() uint64 {
	if t.firstMissing+uint64(len(t.rpcs)) == t.nextRPCID {
		return 0
	}
	t.rpcs[t.slot(t.nextRPCID)] = false
	id := t.nextRPCID
	t.nextRPCID++
	return id
}

// RPCFinished records the result of rpcID as received. Marking an id that was
// never issued, was already finished, or has been swept past fails with
// ErrInvalidRPCID and leaves the tracker unchanged.
func (t *Tracker) RPCFinished(rpcID uint64) error {
	if rpcID < t.firstMissing || rpcID >= t.nextRPCID {
		return fmt.Errorf("%w: %d outside [%d, %d)", ErrInvalidRPCID, rpcID, t.firstMissing, t.nextRPCID)
	}
	s := t.slot(rpcID)
	if t.rpcs[s] {
		return fmt.Errorf("%w: %d already finished", ErrInvalidRPCID, rpcID)
	}

	t.rpcs[s] = true
	if rpcID == t.firstMissing {
		t.firstMissing++
		for t.firstMissing < t.nextRPCID && t.rpcs[t.slot(t.firstMissing)] {
			t.firstMissing++
		}
	}
	return nil
}

// AckID is the watermark: every id at or below it has finished and will never be
// presented again, so the server may discard their deduplication state.
func (t *Tracker) AckID() uint64 {
	return t.firstMissing - 1
}

func (t *Tracker) WindowSize() int {
	return len(t.rpcs)
}

// Outstanding counts ids issued since the watermark, finished or not.
func (t *Tracker) Outstanding() int {
	return int(t.nextRPCID - t.firstMissing)
}

func (t *Tracker) NextRPCID() uint64 {
	return t.nextRPCID
}

func (t *Tracker) FirstMissing() uint64 {
	return t.firstMissing
}

// Pending reports whether rpcID was issued and has not finished yet.
func (t *Tracker) Pending(rpcID uint64) bool {
	return rpcID >= t.firstMissing && rpcID < t.nextRPCID && !t.rpcs[t.slot(rpcID)]
}
