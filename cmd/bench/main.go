package main

import (
	"flag"
	"os"

	"github.com/downfa11-org/go-backup/pkg/bench"
)

func main() {
	addr := flag.String("addr", "localhost:9200", "backup address")
	masters := flag.Int("masters", 8, "number of concurrent masters")
	segments := flag.Int("segments", 16, "segments per master")
	segmentSize := flag.Int("segment-size", 1<<19, "segment size in bytes")
	chunkSize := flag.Int("chunk-size", 64*1024, "bytes per write rpc")
	objectSize := flag.Int("object-size", 1024, "object payload size")
	keep := flag.Bool("keep", false, "leave committed segments on the backup")
	flag.Parse()

	runner := bench.NewBenchmarkRunner(*addr, *masters, *segments, *segmentSize, *chunkSize, *objectSize)
	runner.KeepData = *keep
	res := runner.Run()
	res.Print()
	if res.Err != nil {
		os.Exit(1)
	}
}
