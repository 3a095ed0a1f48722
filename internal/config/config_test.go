package config

import (
	"path/filepath"
	"testing"
)

func TestNewHasSaneDefaults(t *testing.T) {
	c := New()
	if c.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", c.Audio.SampleRate)
	}
	if c.Emulation.Region != "NTSC" {
		t.Errorf("Region = %q, want NTSC", c.Emulation.Region)
	}
	if c.Input.Player1Keys.A != "KeyJ" {
		t.Errorf("Player1Keys.A = %q, want KeyJ", c.Input.Player1Keys.A)
	}
}

func TestLoadFromFileWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "nesulator.json")

	c := New()
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.IsLoaded() {
		t.Error("IsLoaded() true after defaulting a missing file")
	}

	reloaded := &Config{}
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("second LoadFromFile: %v", err)
	}
	if !reloaded.IsLoaded() {
		t.Error("IsLoaded() false after loading an existing file")
	}
	if reloaded.Audio.SampleRate != 44100 {
		t.Errorf("reloaded SampleRate = %d, want 44100", reloaded.Audio.SampleRate)
	}
}

func TestValidateClampsBadValues(t *testing.T) {
	c := &Config{}
	c.Audio.SampleRate = -1
	c.Audio.Volume = 5.0
	c.Emulation.Region = "bogus"
	c.validate()

	if c.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want clamped to 44100", c.Audio.SampleRate)
	}
	if c.Audio.Volume != 0.8 {
		t.Errorf("Volume = %v, want clamped to 0.8", c.Audio.Volume)
	}
	if c.Emulation.Region != "NTSC" {
		t.Errorf("Region = %q, want clamped to NTSC", c.Emulation.Region)
	}
}

func TestSaveRequiresPriorPath(t *testing.T) {
	c := New()
	if err := c.Save(); err == nil {
		t.Error("expected error calling Save before any file path is known")
	}
}

func TestSaveToFileThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")

	c := New()
	c.Audio.Volume = 0.3
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded := &Config{}
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Audio.Volume != 0.3 {
		t.Errorf("loaded Volume = %v, want 0.3", loaded.Audio.Volume)
	}
}
