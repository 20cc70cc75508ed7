// Package config loads and validates server and client configuration from
// flags, environment variables, and an optional config file, using viper the
// way the rest of this codebase's tooling does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/skylinewire/streamd/internal/logging"
)

var log = logging.L("config")

// Default network ports, overridable per-session by a port-mapping table.
const (
	DefaultDiscoveryPort = 32261
	DefaultClientUDPPort = 32262 // client -> server
	DefaultServerUDPPort = 32263 // server -> client
	DefaultTCPPort       = 32264 // shared
)

// ServerConfig holds the streamd-server CLI/config surface.
type ServerConfig struct {
	PrivateKeyHex string `mapstructure:"private_key"`
	Identifier    string `mapstructure:"identifier"`
	WebserverURL  string `mapstructure:"webserver"`

	DiscoveryPort uint16 `mapstructure:"discovery_port"`
	MaxClients    int    `mapstructure:"max_clients"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// ClientConfig holds the streamd-client CLI/config surface.
type ClientConfig struct {
	ServerAddress string `mapstructure:"server_address"`

	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Bitrate int    `mapstructure:"bitrate"`
	Codec   string `mapstructure:"codec"`

	PrivateKeyHex    string `mapstructure:"private_key"`
	User             string `mapstructure:"user"`
	Environment      string `mapstructure:"environment"`
	Icon             string `mapstructure:"icon"`
	ConnectionMethod string `mapstructure:"connection_method"`
	Ports            string `mapstructure:"ports"`
	Name             string `mapstructure:"name"`
	UseCI            bool   `mapstructure:"use_ci"`
	Spin             bool   `mapstructure:"spin"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		DiscoveryPort: DefaultDiscoveryPort,
		MaxClients:    8,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Width:            1920,
		Height:           1080,
		Bitrate:          4_000_000,
		Codec:            "h264",
		Environment:      "production",
		ConnectionMethod: "stun",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadServer reads server configuration from cfgFile (or the default search
// path when empty) and environment variables prefixed STREAMD_. Command-line
// flags are not read here; callers apply them to the returned config. Fatal
// validation errors abort startup; warnings are logged and the offending
// field is clamped in place.
func LoadServer(cfgFile string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	v := newViper(cfgFile, "streamd-server")
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("server config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// LoadClient mirrors LoadServer for the client CLI surface.
func LoadClient(cfgFile string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	v := newViper(cfgFile, "streamd-client")
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("client config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func newViper(cfgFile, configName string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("STREAMD")
	return v
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// ConnectionIDPath returns the path to the cached connection id file,
// mirroring the platform-specific cache directories the rest of this
// codebase uses for persisted agent state.
func ConnectionIDPath() string {
	return filepath.Join(cacheDir(), "connection_id.txt")
}

func cacheDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "StreamdCache")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), ".streamd")
	default:
		return filepath.Join(os.Getenv("HOME"), ".streamd")
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Streamd")
	case "darwin":
		return "/Library/Application Support/Streamd"
	default:
		return "/etc/streamd"
	}
}
