package bench

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/go-backup/pkg/protocol"
)

type BenchmarkRunner struct {
	Addr              string
	NumMasters        int
	SegmentsPerMaster int
	SegmentSize       int
	ChunkSize         int
	ObjectSize        int
	KeepData          bool
}

type Result struct {
	Masters  int
	Segments int
	Bytes    int64
	Duration time.Duration
	Err      error
}

func (r Result) Throughput() float64 {
	return float64(r.Bytes) / (1 << 20) / r.Duration.Seconds()
}

// NewBenchmarkRunner builds a runner. A chunk size that is not positive or does not fit
// one write rpc becomes protocol.MaxWritePayload.
func NewBenchmarkRunner(addr string, masters, segments, segmentSize, chunkSize, objectSize int) *BenchmarkRunner {
	if chunkSize <= 0 || chunkSize > protocol.MaxWritePayload {
		chunkSize = protocol.MaxWritePayload
	}
	return &BenchmarkRunner{
		Addr:              addr,
		NumMasters:        masters,
		SegmentsPerMaster: segments,
		SegmentSize:       segmentSize,
		ChunkSize:         chunkSize,
		ObjectSize:        objectSize,
	}
}

func (b *BenchmarkRunner) Run() Result {
	start := time.Now()

	var (
		wg    sync.WaitGroup
		bytes atomic.Int64
		mu    sync.Mutex
		errs  []error
	)
	for i := 0; i < b.NumMasters; i++ {
		wg.Add(1)
		go func(mid int) {
			defer wg.Done()
			c := &BenchClient{
				Addr:        b.Addr,
				MasterID:    mid,
				Segments:    b.SegmentsPerMaster,
				SegmentSize: b.SegmentSize,
				ChunkSize:   b.ChunkSize,
				ObjectSize:  b.ObjectSize,
				KeepData:    b.KeepData,
			}
			n, err := c.Run()
			bytes.Add(n)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	return Result{
		Masters:  b.NumMasters,
		Segments: b.NumMasters * b.SegmentsPerMaster,
		Bytes:    bytes.Load(),
		Duration: time.Since(start),
		Err:      errors.Join(errs...),
	}
}

func (r Result) Print() {
	fmt.Printf("\nBENCHMARK RESULT [replication]\n")
	fmt.Printf("-------------------------------------\n")
	fmt.Printf(" Masters       : %d\n", r.Masters)
	fmt.Printf(" Segments      : %d\n", r.Segments)
	fmt.Printf(" Bytes Written : %d\n", r.Bytes)
	fmt.Printf(" Duration      : %v\n", r.Duration)
	fmt.Printf(" Throughput    : %.2f MB/sec\n", r.Throughput())
	if r.Err != nil {
		fmt.Printf(" Errors        : %v\n", r.Err)
	}
	fmt.Printf("-------------------------------------\n")
}
