// Package config holds the settings of the cameraview command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type PreviewConfig struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float32 `json:"fps"`
}

type RecordConfig struct {
	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
	BitRate    int    `json:"bit_rate"`
	FrameRate  int    `json:"frame_rate"`
	Directory  string `json:"directory"`
}

type BarcodeConfig struct {
	Enabled bool `json:"enabled"`
	Divider int  `json:"divider"`
}

type ServerConfig struct {
	Address string `json:"address"`
	Quality int    `json:"jpeg_quality"`
}

type AppConfig struct {
	LogLevel string `json:"log_level"`
	CameraID string `json:"camera_id"`
	// OpenTimeout is a time.ParseDuration string, e.g. "5s".
	OpenTimeout          string        `json:"open_timeout"`
	AutoSnapshotInterval string        `json:"auto_snapshot_interval"`
	Preview              PreviewConfig `json:"preview"`
	Record               RecordConfig  `json:"record"`
	Barcode              BarcodeConfig `json:"barcode"`
	Server               ServerConfig  `json:"server"`
}

// Default returns the settings used when no config file exists.
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:    "info",
		OpenTimeout: "5s",
		Preview: PreviewConfig{
			Width:     640,
			Height:    480,
			FrameRate: 30,
		},
		Record: RecordConfig{
			VideoCodec: "video/VP8",
			AudioCodec: "audio/opus",
			BitRate:    10_000_000,
			FrameRate:  30,
			Directory:  ".",
		},
		Barcode: BarcodeConfig{
			Divider: 5,
		},
		Server: ServerConfig{
			Address: "localhost:8080",
			Quality: 75,
		},
	}
}

// Path returns ~/.config/cameraview/config.json, creating the directory.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "cameraview")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate checks the fields that are parsed lazily.
func (c *AppConfig) Validate() error {
	if _, err := c.OpenTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.AutoSnapshotDuration(); err != nil {
		return err
	}
	if c.Barcode.Divider < 0 {
		return fmt.Errorf("barcode divider must not be negative: %d", c.Barcode.Divider)
	}
	return nil
}

// OpenTimeoutDuration parses OpenTimeout. Empty means zero.
func (c *AppConfig) OpenTimeoutDuration() (time.Duration, error) {
	return parseDuration("open_timeout", c.OpenTimeout)
}

// AutoSnapshotDuration parses AutoSnapshotInterval. Empty disables it.
func (c *AppConfig) AutoSnapshotDuration() (time.Duration, error) {
	return parseDuration("auto_snapshot_interval", c.AutoSnapshotInterval)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative", field, s)
	}
	return d, nil
}
