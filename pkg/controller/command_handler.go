package controller

import (
	"fmt"
	"strings"

	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/session"
	"github.com/downfa11-org/go-backup/pkg/types"
	"github.com/downfa11-org/go-backup/util"
)

const maxListedSegments = 4096

// CommandHandler turns text commands into linearizable backup RPCs.
type CommandHandler struct {
	Session *session.Session
}

func NewCommandHandler(s *session.Session) *CommandHandler {
	return &CommandHandler{Session: s}
}

// HandleCommand runs one command line and returns the text to show the operator.
func (ch *CommandHandler) HandleCommand(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return ""
	}

	var resp string
	switch cmd := strings.ToUpper(fields[0]); cmd {
	case "HELP":
		resp = ch.handleHelp()
	case "HEARTBEAT":
		resp = ch.run(func(c *client.MultiBackupClient) (string, error) {
			return "alive", c.Heartbeat()
		})
	case "WRITE":
		resp = ch.handleWrite(line, fields)
	case "COMMIT", "FREE":
		resp = ch.handleSegmentOp(cmd, fields)
	case "LIST":
		resp = ch.handleList()
	case "META":
		resp = ch.handleMeta(fields)
	case "RETRIEVE":
		resp = ch.handleRetrieve(fields)
	default:
		resp = fmt.Sprintf("ERROR: unknown command %q, type HELP", fields[0])
	}

	ch.logCommandResult(line, resp)
	return resp
}

func (ch *CommandHandler) handleHelp() string {
	return `Available commands:
HEARTBEAT - ping every backup
WRITE <seg> <offset> <text> - write text into a segment
COMMIT <seg> - make a segment durable and immutable
FREE <seg> - drop a segment
LIST - list segments held by the backups
META <seg> - list live objects of a segment
RETRIEVE <seg> <size> - read back a segment into a buffer of size bytes
HELP - show this help
EXIT - exit`
}

func (ch *CommandHandler) handleWrite(line string, fields []string) string {
	if len(fields) < 4 {
		return "ERROR: expected WRITE <seg> <offset> <text>"
	}
	seg, err := util.ParseUint64(fields[1])
	if err != nil {
		return fmt.Sprintf("ERROR: invalid segment %q", fields[1])
	}
	offset, err := util.ParseUint32(fields[2])
	if err != nil {
		return fmt.Sprintf("ERROR: invalid offset %q", fields[2])
	}
	text := restAfter(line, 3)

	return ch.run(func(c *client.MultiBackupClient) (string, error) {
		return fmt.Sprintf("wrote %d bytes to segment %d at offset %d", len(text), seg, offset),
			c.WriteSegment(seg, offset, []byte(text))
	})
}

func (ch *CommandHandler) handleSegmentOp(cmd string, fields []string) string {
	if len(fields) != 2 {
		return fmt.Sprintf("ERROR: expected %s <seg>", cmd)
	}
	seg, err := util.ParseUint64(fields[1])
	if err != nil {
		return fmt.Sprintf("ERROR: invalid segment %q", fields[1])
	}

	return ch.run(func(c *client.MultiBackupClient) (string, error) {
		if cmd == "COMMIT" {
			return fmt.Sprintf("segment %d committed", seg), c.CommitSegment(seg)
		}
		return fmt.Sprintf("segment %d freed", seg), c.FreeSegment(seg)
	})
}

func (ch *CommandHandler) handleList() string {
	return ch.run(func(c *client.MultiBackupClient) (string, error) {
		ids := make([]uint64, maxListedSegments)
		n, err := c.GetSegmentList(ids)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "no segments", nil
		}
		parts := make([]string, n)
		for i, id := range ids[:n] {
			parts[i] = fmt.Sprintf("%d", id)
		}
		return "segments: " + strings.Join(parts, ", "), nil
	})
}

func (ch *CommandHandler) handleMeta(fields []string) string {
	if len(fields) != 2 {
		return "ERROR: expected META <seg>"
	}
	seg, err := util.ParseUint64(fields[1])
	if err != nil {
		return fmt.Sprintf("ERROR: invalid segment %q", fields[1])
	}

	return ch.run(func(c *client.MultiBackupClient) (string, error) {
		objs := make([]types.RecoveryObjectMetadata, maxListedSegments)
		n, err := c.GetSegmentMetadata(seg, objs)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d live objects in segment %d", n, seg)
		for _, m := range objs[:n] {
			b.WriteString("\n  ")
			b.WriteString(m.String())
		}
		return b.String(), nil
	})
}

func (ch *CommandHandler) handleRetrieve(fields []string) string {
	if len(fields) != 3 {
		return "ERROR: expected RETRIEVE <seg> <size>"
	}
	seg, err := util.ParseUint64(fields[1])
	if err != nil {
		return fmt.Sprintf("ERROR: invalid segment %q", fields[1])
	}
	size := util.ParseInt(fields[2], -1)
	if size < 0 {
		return fmt.Sprintf("ERROR: invalid size %q", fields[2])
	}

	return ch.run(func(c *client.MultiBackupClient) (string, error) {
		buf := make([]byte, size)
		n, err := c.RetrieveSegment(seg, buf)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("segment %d (%d bytes): %q", seg, n, buf[:n]), nil
	})
}

// run executes op as one linearizable RPC and appends the acknowledgment watermark.
func (ch *CommandHandler) run(op func(c *client.MultiBackupClient) (string, error)) string {
	var out string
	id, err := ch.Session.Do(func(c *client.MultiBackupClient) error {
		var err error
		out, err = op(c)
		return err
	})
	if err != nil {
		return fmt.Sprintf("ERROR: %v [rpc=%d ack=%d]", err, id, ch.Session.AckID())
	}
	return fmt.Sprintf("%s [rpc=%d ack=%d]", out, id, ch.Session.AckID())
}

func (ch *CommandHandler) logCommandResult(cmd, response string) {
	status := "SUCCESS"
	if strings.HasPrefix(response, "ERROR:") {
		status = "FAILURE"
	}
	cleanResponse := strings.ReplaceAll(response, "\n", " ")
	util.Debug("status: '%s', command: '%s' to Response '%s'", status, cmd, cleanResponse)
}

// restAfter returns line with its first n whitespace separated fields removed.
func restAfter(line string, n int) string {
	s := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeft(s[idx:], " \t")
	}
	return s
}
