// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/petervdpas/modrelay/internal/util"
)

// Config is the moderator service's static configuration (C9, SPEC_FULL.md
// §6 "Config file"): listen address, detector/transcriber model locations,
// and the lexicon path. It follows the same nested-struct, JSON-tagged
// shape as the original peer config.
type Config struct {
	Control    Control    `json:"control"`
	Detector   Detector   `json:"detector"`
	Transcriber Transcriber `json:"transcriber"`
	Lexicon    Lexicon    `json:"lexicon"`
	Logging    Logging    `json:"logging"`
}

type Control struct {
	HTTPAddr string `json:"http_addr"`
}

type Detector struct {
	ModelPath  string  `json:"model_path"`
	OnnxLib    string  `json:"onnx_lib"`
	InputSize  int     `json:"input_size"`
	Confidence float64 `json:"confidence"`
}

type Transcriber struct {
	BinaryPath string `json:"binary_path"`
	ModelPath  string `json:"model_path"`
	Language   string `json:"language"`
	TempDir    string `json:"temp_dir"`
}

type Lexicon struct {
	Path string `json:"path"`
}

type Logging struct {
	Level string `json:"level"`
}

func Default() Config {
	return Config{
		Control: Control{
			HTTPAddr: ":8088",
		},
		Detector: Detector{
			ModelPath:  "models/detector.onnx",
			OnnxLib:    "lib/libonnxruntime.so",
			InputSize:  640,
			Confidence: 0.5,
		},
		Transcriber: Transcriber{
			BinaryPath: "bin/whisper-cli",
			ModelPath:  "models/whisper-small.bin",
			Language:   "ko",
			TempDir:    os.TempDir(),
		},
		Lexicon: Lexicon{
			Path: "config/lexicon.json",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Control.HTTPAddr) == "" {
		return errors.New("control.http_addr is required")
	}
	if strings.TrimSpace(c.Detector.ModelPath) == "" {
		// Missing model is an allowed, not fatal, configuration (§7 "Missing
		// model"): the service runs with NullDetector instead.
		log.Printf("CONFIG: detector.model_path is empty, video detection will be disabled")
	}
	if c.Detector.InputSize < 0 {
		return errors.New("detector.input_size must be >= 0")
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		return errors.New("detector.confidence must be in [0,1]")
	}
	if strings.TrimSpace(c.Transcriber.Language) == "" {
		return errors.New("transcriber.language is required")
	}
	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}

// Watcher re-reads a watched file (such as the lexicon) whenever fsnotify
// reports a write or create on it, and hands the new bytes to the callback
// given to Run. It does not parse or apply the contents itself.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cur []byte

	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path for changes. Events are delivered only
// once Run is called.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{path: path, watcher: w}, nil
}

// Run processes fsnotify events until the watcher is closed, invoking
// onChange with the freshly re-read file contents after each write/create.
func (w *Watcher) Run(onChange func([]byte)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			b, err := os.ReadFile(w.path)
			if err != nil {
				log.Printf("CONFIG: reload of %s failed: %v", w.path, err)
				continue
			}
			w.mu.Lock()
			w.cur = b
			w.mu.Unlock()
			if onChange != nil {
				onChange(b)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("CONFIG: watch error on %s: %v", w.path, err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }
