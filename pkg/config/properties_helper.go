package config

import (
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/go-backup/pkg/segment"
	"github.com/downfa11-org/go-backup/util"
)

func (cfg *Config) Normalize() {
	if cfg.BackupPort <= 0 {
		cfg.BackupPort = 9200
	}
	if cfg.HealthCheckPort <= 0 {
		cfg.HealthCheckPort = 9280
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9300
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 64
	}

	// segment storage
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "backup-data"
	}
	cfg.StoreType = strings.ToLower(strings.TrimSpace(cfg.StoreType))
	switch cfg.StoreType {
	case StoreMemory, StoreDisk:
	default:
		util.Warn("Invalid store_type '%s', defaulting to '%s'", cfg.StoreType, StoreDisk)
		cfg.StoreType = StoreDisk
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 1 << 19
	}
	if cfg.SegmentSize > segment.MaxSegmentLen {
		util.Warn("segment_size %d cannot be retrieved or described in one rpc, capping at %d", cfg.SegmentSize, segment.MaxSegmentLen)
		cfg.SegmentSize = segment.MaxSegmentLen
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "none"
	}
	if _, err := util.ParseCodec(cfg.CompressionType); err != nil {
		util.Warn("Invalid compression_type '%s', defaulting to 'none'", cfg.CompressionType)
		cfg.CompressionType = "none"
	}

	// client
	if len(cfg.BackupAddrs) == 0 {
		cfg.BackupAddrs = []string{"localhost:9200"}
	}
	if cfg.MaxBackupHosts <= 0 {
		cfg.MaxBackupHosts = 1
	}
	if cfg.RPCWindowSize <= 0 {
		cfg.RPCWindowSize = 512
	}
	if cfg.DialTimeoutMS <= 0 {
		cfg.DialTimeoutMS = 3000
	}
	if cfg.IOTimeoutMS < 0 {
		cfg.IOTimeoutMS = 0
	}
}

// Codec is the parsed CompressionType. Call after Normalize.
func (cfg *Config) Codec() util.Codec {
	c, _ := util.ParseCodec(cfg.CompressionType)
	return c
}

func (cfg *Config) DialTimeout() time.Duration {
	return time.Duration(cfg.DialTimeoutMS) * time.Millisecond
}

func (cfg *Config) IOTimeout() time.Duration {
	return time.Duration(cfg.IOTimeoutMS) * time.Millisecond
}

func (cfg *Config) applyEnv() {
	overrideEnvInt(&cfg.BackupPort, "BACKUP_PORT")
	overrideEnvInt(&cfg.HealthCheckPort, "BACKUP_HEALTH_CHECK_PORT")
	overrideEnvBool(&cfg.EnableExporter, "BACKUP_ENABLE_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "BACKUP_EXPORTER_PORT")
	if v := os.Getenv("BACKUP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
	overrideEnvInt(&cfg.MaxWorkers, "BACKUP_MAX_WORKERS")

	overrideEnvString(&cfg.DataDir, "BACKUP_DATA_DIR")
	overrideEnvString(&cfg.StoreType, "BACKUP_STORE_TYPE")
	overrideEnvInt(&cfg.SegmentSize, "BACKUP_SEGMENT_SIZE")
	overrideEnvString(&cfg.CompressionType, "BACKUP_COMPRESSION_TYPE")

	overrideEnvStringSlice(&cfg.BackupAddrs, "BACKUP_ADDRS")
	overrideEnvInt(&cfg.MaxBackupHosts, "BACKUP_MAX_HOSTS")
	overrideEnvInt(&cfg.RPCWindowSize, "BACKUP_RPC_WINDOW_SIZE")
	overrideEnvInt(&cfg.DialTimeoutMS, "BACKUP_DIAL_TIMEOUT_MS")
	overrideEnvInt(&cfg.IOTimeoutMS, "BACKUP_IO_TIMEOUT_MS")
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideEnvStringSlice(target *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
