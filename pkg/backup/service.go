package backup

import (
	"errors"

	"github.com/downfa11-org/go-backup/pkg/metrics"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/util"
	"github.com/google/uuid"
)

// Service answers backup RPCs against a Store. It satisfies transport.Handler, so the
// same value serves TCP connections and in-process loopback transports.
type Service struct {
	id    uuid.UUID
	store Store
}

func NewService(store Store) *Service {
	s := &Service{id: uuid.New(), store: store}
	s.updateGauges()
	return s
}

func (s *Service) ID() uuid.UUID {
	return s.id
}

func (s *Service) Store() Store {
	return s.store
}

// HandleFrame decodes one request frame and returns the response frame. Failures are
// reported to the master as ERROR_RESP.
func (s *Service) HandleFrame(frame []byte) []byte {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		util.Warn("rejecting malformed request: %v", err)
		metrics.ObserveRequest("invalid", "error")
		return encodeError(err)
	}

	resp, err := s.handle(req)
	if err != nil {
		util.Debug("backup %s: %s failed: %v", s.id, req.Op, err)
		metrics.ObserveRequest(req.Op.String(), "error")
		return encodeError(err)
	}

	out, err := protocol.EncodeResponse(resp)
	if err != nil {
		util.Error("failed to encode %s response: %v", req.Op, err)
		metrics.ObserveRequest(req.Op.String(), "error")
		return encodeError(err)
	}
	metrics.ObserveRequest(req.Op.String(), "ok")
	return out
}

func (s *Service) handle(req *protocol.Request) (*protocol.Response, error) {
	resp := &protocol.Response{Op: req.Op}

	switch req.Op {
	case protocol.OpHeartbeat:

	case protocol.OpWrite:
		if err := s.store.Write(req.SegNum, req.Offset, req.Data); err != nil {
			return nil, err
		}
		s.updateGauges()

	case protocol.OpCommit:
		if err := s.store.Commit(req.SegNum); err != nil {
			return nil, err
		}
		metrics.SegmentsCommitted.Inc()

	case protocol.OpFree:
		if err := s.store.Free(req.SegNum); err != nil {
			return nil, err
		}
		metrics.SegmentsFreed.Inc()
		s.updateGauges()

	case protocol.OpGetSegmentList:
		resp.SegmentIDs = s.store.List()

	case protocol.OpGetSegmentMetadata:
		data, err := s.store.Read(req.SegNum)
		if err != nil {
			return nil, err
		}
		objs, err := segment.LiveObjects(data)
		if err != nil {
			if !errors.Is(err, segment.ErrTruncatedEntry) {
				return nil, err
			}
			util.Warn("segment %d ends in a partial entry: %v", req.SegNum, err)
		}
		resp.Objects = objs

	case protocol.OpRetrieve:
		data, err := s.store.Read(req.SegNum)
		if err != nil {
			return nil, err
		}
		resp.Data = data
	}
	return resp, nil
}

func (s *Service) updateGauges() {
	st := s.store.Stats()
	metrics.StoredSegments.Set(float64(st.Segments))
	metrics.StoredBytes.Set(float64(st.Bytes))
}

func encodeError(err error) []byte {
	out, encErr := protocol.EncodeResponse(protocol.NewErrorResponse(err.Error()))
	if encErr != nil {
		util.Error("failed to encode error response: %v", encErr)
		return nil
	}
	return out
}
