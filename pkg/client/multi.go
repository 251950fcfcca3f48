package client

import (
	"errors"
	"fmt"
	"slices"

	"github.com/downfa11-org/go-backup/pkg/metrics"
	"github.com/downfa11-org/go-backup/pkg/transport"
	"github.com/downfa11-org/go-backup/pkg/types"
	"github.com/downfa11-org/go-backup/util"
)

// DefaultMaxHosts keeps the single-backup behaviour unless configured otherwise.
const DefaultMaxHosts = 1

// MultiBackupClient fans a master's replication calls out to an ordered set of
// backup hosts.
//
// Mutations (heartbeat, write, commit, free) are sent to every host in insertion
// order; every host is attempted and failures are joined. Segment lists from
// several hosts are merged into one sorted, de-duplicated list. Metadata and
// retrieve are served by the first host that succeeds. With no hosts attached every
// call is a no-op.
type MultiBackupClient struct {
	maxHosts int
	hosts    []*BackupHost
}

func NewMultiBackupClient(maxHosts int) *MultiBackupClient {
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	return &MultiBackupClient{maxHosts: maxHosts}
}

// AddHost takes ownership of t and attaches a new BackupHost for it. When the host
// limit is reached t is closed right away and ErrTooManyHosts is returned; hosts
// already attached are unaffected.
func (c *MultiBackupClient) AddHost(t transport.Transport, addr string) error {
	if len(c.hosts) >= c.maxHosts {
		if err := t.Close(); err != nil {
			util.Warn("Failed to close rejected transport for %s: %v", addr, err)
		}
		return fmt.Errorf("%w: cannot add %s, limit is %d", ErrTooManyHosts, addr, c.maxHosts)
	}

	c.hosts = append(c.hosts, NewBackupHost(t, addr))
	metrics.BackupHosts.Inc()
	util.Info("Attached backup host %s (%d/%d)", addr, len(c.hosts), c.maxHosts)
	return nil
}

func (c *MultiBackupClient) Hosts() int {
	return len(c.hosts)
}

// Close releases every host and its transport.
func (c *MultiBackupClient) Close() error {
	var errs []error
	for _, h := range c.hosts {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backup %s: %w", h.Addr(), err))
		}
	}
	metrics.BackupHosts.Sub(float64(len(c.hosts)))
	c.hosts = nil
	return errors.Join(errs...)
}

func (c *MultiBackupClient) each(fn func(h *BackupHost) error) error {
	var errs []error
	for _, h := range c.hosts {
		if err := fn(h); err != nil {
			errs = append(errs, fmt.Errorf("backup %s: %w", h.Addr(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *MultiBackupClient) Heartbeat() error {
	return c.each(func(h *BackupHost) error { return h.Heartbeat() })
}

func (c *MultiBackupClient) WriteSegment(segNum uint64, offset uint32, data []byte) error {
	return c.each(func(h *BackupHost) error { return h.WriteSegment(segNum, offset, data) })
}

func (c *MultiBackupClient) CommitSegment(segNum uint64) error {
	return c.each(func(h *BackupHost) error { return h.CommitSegment(segNum) })
}

func (c *MultiBackupClient) FreeSegment(segNum uint64) error {
	return c.each(func(h *BackupHost) error { return h.FreeSegment(segNum) })
}

// GetSegmentList returns a single host's list as reported. Lists from several
// hosts are merged, sorted and de-duplicated before the size check.
func (c *MultiBackupClient) GetSegmentList(out []uint64) (int, error) {
	switch len(c.hosts) {
	case 0:
		return 0, nil
	case 1:
		return c.hosts[0].GetSegmentList(out)
	}

	var merged []uint64
	for _, h := range c.hosts {
		ids, err := h.listSegments()
		if err != nil {
			return 0, fmt.Errorf("backup %s: %w", h.Addr(), err)
		}
		merged = append(merged, ids...)
	}
	slices.Sort(merged)
	merged = slices.Compact(merged)

	if len(merged) > len(out) {
		return 0, fmt.Errorf("%w: %d backups reported %d distinct segment ids, buffer holds %d",
			ErrBufferTooSmall, len(c.hosts), len(merged), len(out))
	}
	return copy(out, merged), nil
}

func (c *MultiBackupClient) GetSegmentMetadata(segNum uint64, out []types.RecoveryObjectMetadata) (int, error) {
	return c.first(func(h *BackupHost) (int, error) { return h.GetSegmentMetadata(segNum, out) })
}

func (c *MultiBackupClient) RetrieveSegment(segNum uint64, buf []byte) (int, error) {
	return c.first(func(h *BackupHost) (int, error) { return h.RetrieveSegment(segNum, buf) })
}

// first returns the result of the first host that succeeds. A too-small buffer is
// the caller's problem, so it is returned without trying the remaining hosts.
func (c *MultiBackupClient) first(fn func(h *BackupHost) (int, error)) (int, error) {
	var errs []error
	for _, h := range c.hosts {
		n, err := fn(h)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, ErrBufferTooSmall) {
			return 0, err
		}
		errs = append(errs, fmt.Errorf("backup %s: %w", h.Addr(), err))
	}
	return 0, errors.Join(errs...)
}
