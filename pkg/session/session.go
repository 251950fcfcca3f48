// Package session runs linearizable RPCs against a set of backups. Every operation
// consumes one RPC id from a bounded window; an id is retired only once the backups
// gave a definitive answer, so a retry after a lost connection reuses the same id.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/metrics"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/rpctracker"
	"github.com/downfa11-org/go-backup/util"
	"github.com/google/uuid"
)

var (
	// ErrWindowFull means too many RPCs are outstanding. Finish or retry older ids first.
	ErrWindowFull = errors.New("rpc window full")

	ErrNotPending = errors.New("rpc id is not pending")
)

type Session struct {
	mu      sync.Mutex
	id      uuid.UUID
	client  *client.MultiBackupClient
	tracker *rpctracker.Tracker
}

// New wraps c. The session does not take ownership of the client.
func New(c *client.MultiBackupClient, windowSize int) *Session {
	return &Session{
		id:      uuid.New(),
		client:  c,
		tracker: rpctracker.New(windowSize),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Begin allocates the id for a new RPC.
func (s *Session) Begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.tracker.NewRPCID()
	if id == 0 {
		metrics.SessionWindowFull.Inc()
		return 0, fmt.Errorf("%w: %d outstanding, oldest %d", ErrWindowFull, s.tracker.Outstanding(), s.tracker.FirstMissing())
	}
	s.observe()
	return id, nil
}

// Run executes op under id. The id is finished when op succeeds or fails in a way a
// retry cannot change; after a lost connection or a malformed response it stays
// pending and Run may be called again with it.
func (s *Session) Run(id uint64, op func(*client.MultiBackupClient) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.Pending(id) {
		return fmt.Errorf("%w: %d", ErrNotPending, id)
	}

	err := op(s.client)
	if !definitive(err) {
		util.Warn("session %s: rpc %d left pending: %v", s.id, id, err)
		return err
	}

	if ferr := s.tracker.RPCFinished(id); ferr != nil {
		return errors.Join(err, ferr)
	}
	s.observe()
	return err
}

// Do is Begin followed by Run.
func (s *Session) Do(op func(*client.MultiBackupClient) error) (uint64, error) {
	id, err := s.Begin()
	if err != nil {
		return 0, err
	}
	return id, s.Run(id, op)
}

func (s *Session) AckID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.AckID()
}

func (s *Session) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Outstanding()
}

// Close drops the session's metric series.
func (s *Session) Close() {
	metrics.SessionOutstanding.DeleteLabelValues(s.id.String())
}

func (s *Session) observe() {
	metrics.SessionOutstanding.WithLabelValues(s.id.String()).Set(float64(s.tracker.Outstanding()))
}

func definitive(err error) bool {
	return !errors.Is(err, client.ErrConnectionLost) && !errors.Is(err, protocol.ErrProtocol)
}
