package client

import (
	"errors"
	"fmt"

	"github.com/downfa11-org/go-backup/pkg/protocol"
)

var (
	// ErrBufferTooSmall means the caller's output slice cannot hold the result.
	// Nothing was copied; retry with a larger slice.
	ErrBufferTooSmall = errors.New("output buffer too small")

	// ErrTooManyHosts is returned by AddHost once the host limit is reached.
	ErrTooManyHosts = errors.New("too many backup hosts")

	// ErrConnectionLost wraps any transport failure during an RPC.
	ErrConnectionLost = errors.New("backup connection lost")
)

func connectionLost(addr string, op protocol.Opcode, err error) error {
	return fmt.Errorf("%w: %s to %s: %w", ErrConnectionLost, op, addr, err)
}

// resultLabel classifies an RPC outcome for metrics.
func resultLabel(err error) string {
	var be *protocol.BackupError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &be):
		return "backup_error"
	case errors.Is(err, ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, protocol.ErrProtocol):
		return "protocol_error"
	case errors.Is(err, protocol.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrBufferTooSmall):
		return "buffer_too_small"
	default:
		return "error"
	}
}
