// Package config carries the small JSON-backed settings the
// cmd/nesulator host reads at startup: audio sample rate, the NTSC/PAL
// reference flag, and keyboard bindings for both controller ports.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the host's persisted settings.
type Config struct {
	Audio     AudioConfig     `json:"audio"`
	Emulation EmulationConfig `json:"emulation"`
	Input     InputConfig     `json:"input"`

	configPath string
	loaded     bool
}

// AudioConfig controls the APU sample generation rate and host volume.
type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sample_rate"`
	Volume     float32 `json:"volume"`
}

// EmulationConfig selects the NTSC/PAL timing reference. The core
// itself is NTSC-only; this flag exists so the host can label its
// window/report its refresh target correctly.
type EmulationConfig struct {
	Region string `json:"region"` // "NTSC" or "PAL"
}

// InputConfig carries keyboard bindings for both controller ports.
type InputConfig struct {
	Player1Keys KeyMapping `json:"player1_keys"`
	Player2Keys KeyMapping `json:"player2_keys"`
}

// KeyMapping names one keyboard key per NES controller button, using
// ebiten's Key constant names (e.g. "KeyW", "KeyArrowUp").
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// New returns the default configuration: 44.1 kHz NTSC audio, WASD +
// JK + Enter/Space on port 1, arrow keys + NM + RShift/RCtrl on port 2.
func New() *Config {
	return &Config{
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			Volume:     0.8,
		},
		Emulation: EmulationConfig{
			Region: "NTSC",
		},
		Input: InputConfig{
			Player1Keys: KeyMapping{
				Up: "KeyW", Down: "KeyS", Left: "KeyA", Right: "KeyD",
				A: "KeyJ", B: "KeyK", Start: "KeyEnter", Select: "KeySpace",
			},
			Player2Keys: KeyMapping{
				Up: "KeyArrowUp", Down: "KeyArrowDown", Left: "KeyArrowLeft", Right: "KeyArrowRight",
				A: "KeyN", B: "KeyM", Start: "KeyShiftRight", Select: "KeyControlRight",
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON file, writing the
// default configuration to path first if it doesn't yet exist.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	c.validate()
	c.loaded = true
	return nil
}

// SaveToFile writes the configuration to path as indented JSON,
// creating its parent directory if needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Save rewrites the configuration to the path it was last loaded from
// or saved to.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config: no file path set")
	}
	return c.SaveToFile(c.configPath)
}

// validate clamps out-of-range values to their defaults rather than
// rejecting the whole file over one bad field.
func (c *Config) validate() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.Volume < 0.0 || c.Audio.Volume > 1.0 {
		c.Audio.Volume = 0.8
	}
	if c.Emulation.Region != "NTSC" && c.Emulation.Region != "PAL" {
		c.Emulation.Region = "NTSC"
	}
}

// IsLoaded reports whether the configuration came from an existing
// file rather than being freshly defaulted.
func (c *Config) IsLoaded() bool { return c.loaded }

// GetConfigPath returns the path the configuration was loaded from or
// last saved to.
func (c *Config) GetConfigPath() string { return c.configPath }

// DefaultConfigPath returns the conventional settings file location.
func DefaultConfigPath() string { return "./config/nesulator.json" }
