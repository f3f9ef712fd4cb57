package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds server configuration values
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Relay     RelayConfig     `mapstructure:"relay" yaml:"relay"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// RelayConfig sizes the relay's queues
type RelayConfig struct {
	SendBuffer     int `mapstructure:"send_buffer" yaml:"send_buffer"`
	IncomingBuffer int `mapstructure:"incoming_buffer" yaml:"incoming_buffer"`
}

type WebSocketConfig struct {
	ReadLimit      int64         `mapstructure:"read_limit" yaml:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period" yaml:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Relay: RelayConfig{
			SendBuffer:     64,
			IncomingBuffer: 256,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:      4096,
			PingPeriod:     54 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			AllowedOrigins: []string{"*"},
		},
	}
}

// Validate reports every problem with c at once
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", c.Log.Format))
	}

	if c.Relay.SendBuffer <= 0 || c.Relay.IncomingBuffer <= 0 {
		errs = append(errs, errors.New("relay.send_buffer and relay.incoming_buffer must be positive"))
	}

	if c.WebSocket.ReadLimit <= 0 {
		errs = append(errs, errors.New("websocket.read_limit must be positive"))
	}
	if c.WebSocket.PongWait <= 0 || c.WebSocket.WriteWait <= 0 {
		errs = append(errs, errors.New("websocket.pong_wait and websocket.write_wait must be positive"))
	}
	if c.WebSocket.PingPeriod <= 0 || c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		errs = append(errs, errors.New("websocket.ping_period must be positive and shorter than pong_wait"))
	}

	return errors.Join(errs...)
}
