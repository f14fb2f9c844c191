package commands

import (
	"encoding/json"
	"log"
	"log/syslog"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	logrus_syslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/meshwire/meshwire/pkg/link"
	"github.com/meshwire/meshwire/pkg/mesh"
)

const configEnv = "MESHWIRE_CONFIG"

var (
	configPath string
	syslogAddr string
	tag        string

	masterLogger *logging.MasterLogger
	logger       *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "meshwire",
	Short: "Mesh overlay node over a broadcast datagram link",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.meshwire.json)")
	rootCmd.PersistentFlags().StringVar(&syslogAddr, "syslog", "none", "syslog server address. E.g. localhost:514")
	rootCmd.PersistentFlags().StringVar(&tag, "tag", "meshwire", "logging tag")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(genConfigCmd)
}

// Execute executes root CLI command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func startLogger() {
	masterLogger = logging.NewMasterLogger()
	logger = masterLogger.PackageLogger(tag)

	if syslogAddr != "none" {
		hook, err := logrus_syslog.NewSyslogHook("udp", syslogAddr, syslog.LOG_INFO, tag)
		if err != nil {
			logger.Error("Unable to connect to syslog daemon:", err)
		} else {
			masterLogger.AddHook(hook)
		}
	}
}

// LogStoreConfig selects where per-peer traffic counters go.
type LogStoreConfig struct {
	Type     string `json:"type"` // memory, file or boltdb
	Location string `json:"location"`
}

// Config is the node configuration file.
type Config struct {
	NetworkID        uint32 `json:"network_id"`
	QueueSize        int    `json:"queue_size"`
	MaxWaitingTimeMS int    `json:"max_waiting_time_ms"`
	SendTimeoutMS    int    `json:"send_timeout_ms"`
	SendAttempts     int    `json:"send_attempts"`
	IDCacheSize      int    `json:"id_cache_size"`
	RouteCacheSize   int    `json:"route_cache_size"`

	Interface string `json:"interface"`
	Group     string `json:"group"`
	Addr      string `json:"addr,omitempty"`

	APIAddr  string         `json:"api_addr,omitempty"`
	LogLevel string         `json:"log_level"`
	LogStore LogStoreConfig `json:"log_store"`
}

// DefaultFileConfig mirrors mesh.DefaultConfig for the config file.
func DefaultFileConfig() Config {
	cfg := mesh.DefaultConfig()
	return Config{
		NetworkID:        cfg.NetworkID,
		QueueSize:        cfg.QueueSize,
		MaxWaitingTimeMS: int(cfg.MaxWaitingTime / time.Millisecond),
		SendTimeoutMS:    int(cfg.SendTimeout / time.Millisecond),
		SendAttempts:     cfg.SendAttempts,
		IDCacheSize:      cfg.IDCacheSize,
		RouteCacheSize:   cfg.RouteCacheSize,
		LogLevel:         "info",
		LogStore:         LogStoreConfig{Type: "memory"},
	}
}

// MeshConfig converts the file config to an engine config.
func (c Config) MeshConfig() (mesh.Config, error) {
	cfg := mesh.Config{
		NetworkID:      c.NetworkID,
		QueueSize:      c.QueueSize,
		MaxWaitingTime: time.Duration(c.MaxWaitingTimeMS) * time.Millisecond,
		SendTimeout:    time.Duration(c.SendTimeoutMS) * time.Millisecond,
		SendAttempts:   c.SendAttempts,
		IDCacheSize:    c.IDCacheSize,
		RouteCacheSize: c.RouteCacheSize,
	}

	switch c.LogStore.Type {
	case "", "memory":
		cfg.LogStore = link.InMemoryLogStore()
	case "file":
		cfg.LogStore = link.FileLogStore(c.LogStore.Location)
	case "boltdb":
		store, err := link.BoltDBLogStore(c.LogStore.Location)
		if err != nil {
			return cfg, err
		}
		cfg.LogStore = store
	default:
		return cfg, mesh.ErrInvalidConfig
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".meshwire.json"
	}
	return filepath.Join(home, ".meshwire.json")
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env, ok := os.LookupEnv(configEnv); ok {
		return env
	}
	return defaultConfigPath()
}

func readConfig() Config {
	path := resolveConfigPath()
	f, err := os.Open(path)
	if err != nil {
		logger.Fatalf("Failed to open config %s: %s", path, err)
	}
	defer f.Close()

	conf := DefaultFileConfig()
	if err := json.NewDecoder(f).Decode(&conf); err != nil {
		logger.Fatalf("Failed to decode %s: %s", path, err)
	}
	return conf
}
