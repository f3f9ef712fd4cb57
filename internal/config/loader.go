package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix         = "CHESSMATCH"
	defaultConfigName = "chessmatch.yaml"
)

// Load builds configuration from defaults, an optional config file and
// CHESSMATCH_* environment variables, and returns the file path consulted.
// Precedence: defaults < config file < env vars.
//
// A missing file at the default location is not an error. A missing file at
// an explicit path is.
func Load(explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := explicitPath
	if configPath == "" {
		configPath = defaultPath()
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || explicitPath != "" {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, configPath, nil
}

// WriteDefault writes the default configuration as YAML. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = defaultPath()
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// setDefaults registers every key so that env vars can override keys absent
// from the file
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("relay.send_buffer", cfg.Relay.SendBuffer)
	v.SetDefault("relay.incoming_buffer", cfg.Relay.IncomingBuffer)

	v.SetDefault("websocket.read_limit", cfg.WebSocket.ReadLimit)
	v.SetDefault("websocket.ping_period", cfg.WebSocket.PingPeriod)
	v.SetDefault("websocket.pong_wait", cfg.WebSocket.PongWait)
	v.SetDefault("websocket.write_wait", cfg.WebSocket.WriteWait)
	v.SetDefault("websocket.allowed_origins", cfg.WebSocket.AllowedOrigins)
}

func defaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}
