package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/pkg/config"
	"github.com/downfa11-org/go-backup/pkg/metrics"
	"github.com/downfa11-org/go-backup/pkg/protocol"
	"github.com/downfa11-org/go-backup/pkg/transport"
	"github.com/downfa11-org/go-backup/util"
)

// Run starts the backup server and blocks until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg *config.Config, svc *backup.Service) error {
	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	} else {
		util.Info("Exporter disabled")
	}

	health := startHealthCheckServer(cfg.HealthCheckPort, svc)
	defer health.Close()

	addr := fmt.Sprintf(":%d", cfg.BackupPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	util.Info("Backup %s listening on %s (store=%s, workers=%d)", svc.ID(), addr, cfg.StoreType, cfg.MaxWorkers)
	return Serve(ctx, ln, svc, cfg.MaxWorkers, cfg.IOTimeout())
}

// Serve accepts connections on ln and hands them to a pool of maxWorkers goroutines.
// It closes ln and every open connection when ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, h transport.Handler, maxWorkers int, ioTimeout time.Duration) error {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	workerCh := make(chan net.Conn, maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range workerCh {
				HandleConnection(ctx, conn, h, ioTimeout)
			}
		}()
	}
	defer func() {
		cancel()
		close(workerCh)
		wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				util.Info("Backup server shutting down")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			util.Warn("Accept error: %v", err)
			continue
		}

		select {
		case workerCh <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// HandleConnection serves one master connection: receive a request frame, answer it,
// repeat until the peer goes away or ctx is cancelled.
func HandleConnection(ctx context.Context, conn net.Conn, h transport.Handler, ioTimeout time.Duration) {
	t := transport.NewConnTransport(conn, transport.Options{IOTimeout: ioTimeout, MaxFrameSize: protocol.MaxRPCLen})
	defer t.Close()

	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	remote := t.RemoteAddr()
	util.Debug("Master connected from %s", remote)

	for {
		req, err := t.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				util.Warn("Read from %s failed: %v", remote, err)
			}
			util.Debug("Master %s disconnected", remote)
			return
		}

		resp := h.HandleFrame(req)
		if resp == nil {
			util.Error("No response for request from %s, dropping connection", remote)
			return
		}
		if err := t.Send(resp); err != nil {
			util.Warn("Write to %s failed: %v", remote, err)
			return
		}
	}
}
