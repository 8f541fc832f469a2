package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/relaydesk/fabric/internal/logging"
)

var log = logging.L("config")

// Config holds the settings for both the relayd and fabric-agent binaries.
// Each binary reads only the section relevant to it; keeping one struct
// mirrors how a single YAML file is deployed alongside both processes in a
// typical relay+agent pairing.
type Config struct {
	// Relay management HTTP endpoint (spec §6 "Relay management endpoint").
	ServerHost string `mapstructure:"server.host"`
	ServerPort int    `mapstructure:"server.port"`

	// Relay framed transport and client reconnect/keepalive tuning.
	RelayPort                  int    `mapstructure:"relay.port"`
	RelayHost                  string `mapstructure:"relay.host"`
	RelayMaxReconnectAttempts  int    `mapstructure:"relay.max_reconnect_attempts"`
	RelayReconnectDelaySecs    int    `mapstructure:"relay.reconnect_delay_secs"`
	RelayKeepaliveIntervalSecs int    `mapstructure:"relay.keepalive_interval_secs"`
	RelayKeepaliveTimeoutSecs  int    `mapstructure:"relay.keepalive_timeout_secs"`

	// File transfer engine.
	TransferChunkBytes  int    `mapstructure:"transfer.chunk_bytes"`
	TransferDownloadDir string `mapstructure:"transfer.download_dir"`

	// Screen capture pacing.
	CaptureTargetFPS int `mapstructure:"capture.target_fps"`

	// Device identity and admission bridge credentials (fabric-agent only).
	DeviceID  string `mapstructure:"device_id"`
	AuthToken string `mapstructure:"auth_token"`

	// Admission Bridge RPC endpoints (relayd only).
	AuthServiceURL      string `mapstructure:"admission.auth_service_url"`
	DirectoryServiceURL string `mapstructure:"admission.directory_service_url"`
	PolicyServiceURL    string `mapstructure:"admission.policy_service_url"`
	AuditServiceURL     string `mapstructure:"admission.audit_service_url"`
	AdmissionToken      string `mapstructure:"admission.token"`
	Standalone          bool   `mapstructure:"admission.standalone"`

	// Logging configuration.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Audit configuration (relayd's local hash-chained trail).
	AuditEnabled    bool `mapstructure:"audit_enabled"`
	AuditMaxSizeMB  int  `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int  `mapstructure:"audit_max_backups"`
}

func Default() *Config {
	return &Config{
		ServerHost: "0.0.0.0",
		ServerPort: 21116,

		RelayHost:                  "0.0.0.0",
		RelayPort:                  21117,
		RelayMaxReconnectAttempts:  10,
		RelayReconnectDelaySecs:    5,
		RelayKeepaliveIntervalSecs: 30,
		RelayKeepaliveTimeoutSecs:  60,

		TransferChunkBytes:  1 << 20,
		TransferDownloadDir: filepath.Join(GetDataDir(), "downloads"),

		CaptureTargetFPS: 30,

		Standalone: false,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		AuditEnabled:    true,
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fabric")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FABRIC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Validate config: fatals block startup, warnings are logged and continue.
	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("server.host", cfg.ServerHost)
	viper.Set("server.port", cfg.ServerPort)
	viper.Set("relay.host", cfg.RelayHost)
	viper.Set("relay.port", cfg.RelayPort)
	viper.Set("relay.max_reconnect_attempts", cfg.RelayMaxReconnectAttempts)
	viper.Set("relay.reconnect_delay_secs", cfg.RelayReconnectDelaySecs)
	viper.Set("relay.keepalive_interval_secs", cfg.RelayKeepaliveIntervalSecs)
	viper.Set("relay.keepalive_timeout_secs", cfg.RelayKeepaliveTimeoutSecs)
	viper.Set("transfer.chunk_bytes", cfg.TransferChunkBytes)
	viper.Set("transfer.download_dir", cfg.TransferDownloadDir)
	viper.Set("capture.target_fps", cfg.CaptureTargetFPS)
	viper.Set("device_id", cfg.DeviceID)
	viper.Set("auth_token", cfg.AuthToken)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "fabric.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains auth token)
	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory for the relay and agent.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "RelayFabric", "data")
	case "darwin":
		return "/Library/Application Support/RelayFabric/data"
	default:
		return "/var/lib/relayfabric"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "RelayFabric")
	case "darwin":
		return "/Library/Application Support/RelayFabric"
	default:
		return "/etc/relayfabric"
	}
}
