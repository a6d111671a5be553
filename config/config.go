// Package config loads the relay and meeting server configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionConfig controls the reaper's sweep interval and the idle timeout
// after which a session or meeting room is reaped, both in seconds.
type SessionConfig struct {
	Interval int `yaml:"interval"`
	Timeout  int `yaml:"timeout"`
}

// IntervalDuration returns the reaper sweep period as a time.Duration.
func (s SessionConfig) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// TimeoutDuration returns the idle timeout as a time.Duration.
func (s SessionConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// RelayConfig is the configuration for relay-server.
type RelayConfig struct {
	Session    SessionConfig `yaml:"session"`
	Bind       string        `yaml:"bind"`
	KeypairPEM string        `yaml:"keypair_pem"`
	LogLevel   string        `yaml:"log_level"`
}

// MeetingConfig is the configuration for meeting-server. It carries no
// keypair: meeting-point clients connect anonymously.
type MeetingConfig struct {
	Session  SessionConfig `yaml:"session"`
	Bind     string        `yaml:"bind"`
	LogLevel string        `yaml:"log_level"`
}

// DefaultRelayConfig returns a config with sensible defaults.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Session: SessionConfig{
			Interval: 30,
			Timeout:  300,
		},
		Bind:       "0.0.0.0:7010",
		KeypairPEM: "/etc/threshold-relay/relay.pem",
		LogLevel:   "info",
	}
}

// DefaultMeetingConfig returns a config with sensible defaults.
func DefaultMeetingConfig() *MeetingConfig {
	return &MeetingConfig{
		Session: SessionConfig{
			Interval: 30,
			Timeout:  300,
		},
		Bind:     "0.0.0.0:7070",
		LogLevel: "info",
	}
}

// LoadRelayConfig loads relay config from a YAML file, overlaying
// DefaultRelayConfig with whatever path sets.
func LoadRelayConfig(path string) (*RelayConfig, error) {
	cfg := DefaultRelayConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load relay config: %w", err)
	}
	return cfg, nil
}

// LoadMeetingConfig loads meeting-server config from a YAML file, overlaying
// DefaultMeetingConfig with whatever path sets.
func LoadMeetingConfig(path string) (*MeetingConfig, error) {
	cfg := DefaultMeetingConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load meeting config: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
