package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/pkg/config"
	"github.com/downfa11-org/go-backup/pkg/server"
	"github.com/downfa11-org/go-backup/util"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.Fatal("Failed to load config: %v", err)
	}

	fmt.Printf("Starting backup on port %d\n", cfg.BackupPort)
	fmt.Printf("Store: %s | Exporter: %v\n", cfg.StoreType, cfg.EnableExporter)

	store, err := openStore(cfg)
	if err != nil {
		util.Fatal("Failed to open %s store: %v", cfg.StoreType, err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, backup.NewService(store)); err != nil {
		util.Fatal("Backup failed: %v", err)
	}
}

func openStore(cfg *config.Config) (backup.Store, error) {
	if cfg.StoreType == config.StoreMemory {
		return backup.NewMemoryStore(uint32(cfg.SegmentSize)), nil
	}
	return backup.NewDiskStore(cfg.DataDir, uint32(cfg.SegmentSize), cfg.Codec())
}
