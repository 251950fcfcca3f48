package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol marks a malformed frame. The connection that produced it should
	// no longer be trusted.
	ErrProtocol = errors.New("backup protocol error")

	// ErrPayloadTooLarge is returned before sending when a frame would exceed MaxRPCLen.
	ErrPayloadTooLarge = errors.New("rpc would exceed max rpc length")
)

// BackupError is a failure reported by the backup through an ERROR_RESP frame.
// The connection remains usable.
type BackupError struct {
	Op      Opcode
	Message string
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup operation %s failed: %s", e.Op, e.Message)
}

func protocolErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
