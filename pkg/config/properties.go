package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/go-backup/util"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
)

// Config covers both sides of replication: the backup server and the master-side client.
type Config struct {
	// Server settings
	BackupPort      int           `yaml:"backup_port" json:"backup.port"`
	HealthCheckPort int           `yaml:"health_check_port" json:"health.check.port"`
	EnableExporter  bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort    int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel        util.LogLevel `yaml:"log_level" json:"log_level"`
	MaxWorkers      int           `yaml:"max_workers" json:"max.workers"`

	// Segment storage
	DataDir         string `yaml:"data_dir" json:"data.dir"`
	StoreType       string `yaml:"store_type" json:"store.type"`
	SegmentSize     int    `yaml:"segment_size" json:"segment.size"`
	CompressionType string `yaml:"compression_type" json:"compression.type"`

	// Master-side client
	BackupAddrs    []string `yaml:"backup_addrs" json:"backup.addrs"`
	MaxBackupHosts int      `yaml:"max_backup_hosts" json:"max.backup.hosts"`
	RPCWindowSize  int      `yaml:"rpc_window_size" json:"rpc.window.size"`
	DialTimeoutMS  int      `yaml:"dial_timeout_ms" json:"dial.timeout.ms"`
	IOTimeoutMS    int      `yaml:"io_timeout_ms" json:"io.timeout.ms"`
}

// LoadConfig reads the process flags, see Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config from flag defaults, then the optional YAML/JSON file named by
// -config or CONFIG_PATH, then flags given explicitly on the command line, then
// BACKUP_* environment variables.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	port := fs.Int("port", 9200, "Backup server port")
	healthPort := fs.Int("health-port", 9280, "Health check server port")
	exporter := fs.Bool("exporter", true, "Enable Prometheus exporter")
	exporterPort := fs.Int("exporter-port", 9300, "Exporter port")
	logLevel := fs.String("log-level", "info", "Log Level (debug, info, warn, error)")
	maxWorkers := fs.Int("max-workers", 64, "Connections served concurrently")

	dataDir := fs.String("data-dir", "backup-data", "Directory for committed segments")
	storeType := fs.String("store", StoreDisk, "Segment store (memory, disk)")
	segmentSize := fs.Int("segment-size", 1<<19, "Maximum segment size in bytes")
	compression := fs.String("compression", "none", "Committed segment compression (none, gzip, snappy, lz4)")

	backupAddrs := fs.String("backups", "localhost:9200", "Comma separated backup addresses")
	maxHosts := fs.Int("max-backup-hosts", 1, "Maximum backups a master replicates to")
	window := fs.Int("rpc-window", 512, "Outstanding linearizable RPCs per session")
	dialTimeout := fs.Int("dial-timeout-ms", 3000, "Dial timeout in milliseconds")
	ioTimeout := fs.Int("io-timeout-ms", 0, "Per read/write deadline in milliseconds (0=disabled)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	cfg := &Config{
		BackupPort:      *port,
		HealthCheckPort: *healthPort,
		EnableExporter:  *exporter,
		ExporterPort:    *exporterPort,
		LogLevel:        util.ParseLogLevel(*logLevel),
		MaxWorkers:      *maxWorkers,
		DataDir:         *dataDir,
		StoreType:       *storeType,
		SegmentSize:     *segmentSize,
		CompressionType: *compression,
		BackupAddrs:     splitList(*backupAddrs),
		MaxBackupHosts:  *maxHosts,
		RPCWindowSize:   *window,
		DialTimeoutMS:   *dialTimeout,
		IOTimeoutMS:     *ioTimeout,
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(*configPath, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", *configPath, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", *configPath, err)
			}
		}

		// flags given on the command line win over the file
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "port":
				cfg.BackupPort = *port
			case "health-port":
				cfg.HealthCheckPort = *healthPort
			case "exporter":
				cfg.EnableExporter = *exporter
			case "exporter-port":
				cfg.ExporterPort = *exporterPort
			case "log-level":
				cfg.LogLevel = util.ParseLogLevel(*logLevel)
			case "max-workers":
				cfg.MaxWorkers = *maxWorkers
			case "data-dir":
				cfg.DataDir = *dataDir
			case "store":
				cfg.StoreType = *storeType
			case "segment-size":
				cfg.SegmentSize = *segmentSize
			case "compression":
				cfg.CompressionType = *compression
			case "backups":
				cfg.BackupAddrs = splitList(*backupAddrs)
			case "max-backup-hosts":
				cfg.MaxBackupHosts = *maxHosts
			case "rpc-window":
				cfg.RPCWindowSize = *window
			case "dial-timeout-ms":
				cfg.DialTimeoutMS = *dialTimeout
			case "io-timeout-ms":
				cfg.IOTimeoutMS = *ioTimeout
			}
		})
	}

	cfg.applyEnv()
	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)

	return cfg, nil
}
