package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should validate, got %v", err)
	}
}

func TestValidateRejectsEmptyHTTPAddr(t *testing.T) {
	cfg := Default()
	cfg.Control.HTTPAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an empty control.http_addr")
	}
}

func TestValidateAllowsMissingDetectorModel(t *testing.T) {
	cfg := Default()
	cfg.Detector.ModelPath = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("a missing detector model should be a non-fatal configuration, got error %v", err)
	}
}

func TestValidateRejectsConfidenceOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Detector.Confidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for confidence > 1")
	}
}

func TestValidateRejectsEmptyLanguage(t *testing.T) {
	cfg := Default()
	cfg.Transcriber.Language = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an empty transcriber language")
	}
}

func TestEnsureCreatesDefaultConfigOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modrelay.json")

	cfg, created, err := Ensure(path)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !created {
		t.Fatal("Ensure() should report created=true for a missing file")
	}
	if cfg.Control.HTTPAddr != Default().Control.HTTPAddr {
		t.Fatalf("created config HTTPAddr = %q, want default", cfg.Control.HTTPAddr)
	}
}

func TestEnsureLoadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modrelay.json")

	cfg := Default()
	cfg.Control.HTTPAddr = ":9999"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, created, err := Ensure(path)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if created {
		t.Fatal("Ensure() should report created=false for an existing file")
	}
	if loaded.Control.HTTPAddr != ":9999" {
		t.Fatalf("loaded HTTPAddr = %q, want :9999", loaded.Control.HTTPAddr)
	}
}

func TestLoadMissingFieldsFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(path, []byte(`{"control":{"http_addr":":8088"},"transcriber":{"language":"ko"}}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Lexicon.Path != Default().Lexicon.Path {
		t.Fatalf("expected missing Lexicon.Path to fall back to default, got %q", cfg.Lexicon.Path)
	}
}
