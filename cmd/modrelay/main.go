// cmd/modrelay/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/petervdpas/modrelay/internal/config"
	"github.com/petervdpas/modrelay/internal/control"
	"github.com/petervdpas/modrelay/internal/moderation"
	"github.com/petervdpas/modrelay/internal/relay"
	"github.com/petervdpas/modrelay/internal/util"
)

var (
	cfgPath = flag.String("config", "modrelay.json", "path to the config file")
	version = flag.Bool("version", false, "show version")
)

var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("modrelay v%s\n", appVersion)
		return
	}

	cfg, created, err := config.Ensure(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if created {
		log.Printf("CONFIG: wrote default config to %s", *cfgPath)
	}
	cfg = resolveRelativePaths(filepath.Dir(*cfgPath), cfg)

	detector := buildDetector(cfg.Detector)
	transcriber := buildTranscriber(cfg.Transcriber)
	lexicon := buildLexicon(cfg.Lexicon)

	sig := relay.NewLocalSignaler()

	factory := func(channelID string) *moderation.Session {
		return moderation.NewSession(channelID, detector, transcriber, lexicon)
	}

	manager := relay.New(sig, relay.Config{}, factory)
	manager.OnIncoming(func(ib *relay.IncomingBroadcast) {
		log.Printf("RELAY: incoming broadcast on %s from %s, auto-accepting", ib.ChannelID, ib.FromPeer)
		if _, err := ib.Accept(); err != nil {
			log.Printf("RELAY: accept failed: %v", err)
		}
	})

	mux := http.NewServeMux()
	control.RegisterRoutes(mux, manager, manager)

	srv := &http.Server{Addr: cfg.Control.HTTPAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("modrelay: shutting down gracefully...")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		manager.Close()
		_ = srv.Close()
	}()

	printBanner(cfg)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("control surface: %v", err)
	}
}

// resolveRelativePaths rewrites configured model/lexicon paths that are
// relative so they resolve against the config file's directory rather than
// the process's working directory, matching how operators expect a
// config-adjacent "models/" or "config/" layout to behave regardless of
// where modrelay is launched from.
func resolveRelativePaths(baseDir string, cfg config.Config) config.Config {
	if cfg.Detector.ModelPath != "" {
		cfg.Detector.ModelPath = util.ResolvePath(baseDir, cfg.Detector.ModelPath)
	}
	if cfg.Detector.OnnxLib != "" {
		cfg.Detector.OnnxLib = util.ResolvePath(baseDir, cfg.Detector.OnnxLib)
	}
	if cfg.Transcriber.BinaryPath != "" {
		cfg.Transcriber.BinaryPath = util.ResolvePath(baseDir, cfg.Transcriber.BinaryPath)
	}
	if cfg.Transcriber.ModelPath != "" {
		cfg.Transcriber.ModelPath = util.ResolvePath(baseDir, cfg.Transcriber.ModelPath)
	}
	if cfg.Lexicon.Path != "" {
		cfg.Lexicon.Path = util.ResolvePath(baseDir, cfg.Lexicon.Path)
	}
	return cfg
}

// buildDetector degrades to NullDetector when no model is configured or
// the ONNX runtime fails to load (§7 "Missing model").
func buildDetector(d config.Detector) moderation.Detector {
	if d.ModelPath == "" || d.OnnxLib == "" {
		log.Printf("DETECTOR: no model configured, video category detection disabled")
		return moderation.NullDetector{}
	}
	det, err := moderation.NewOnnxDetector(moderation.OnnxDetectorConfig{
		ModelPath:  d.ModelPath,
		OnnxLib:    d.OnnxLib,
		InputSize:  d.InputSize,
		Confidence: d.Confidence,
	})
	if err != nil {
		log.Printf("DETECTOR: failed to load %s: %v, falling back to disabled detection", d.ModelPath, err)
		return moderation.NullDetector{}
	}
	return det
}

// buildTranscriber degrades to NullTranscriber when no whisper binary/model
// is configured (§7 "Missing model" applies equally to the audio path).
func buildTranscriber(t config.Transcriber) moderation.Transcriber {
	if t.BinaryPath == "" || t.ModelPath == "" {
		log.Printf("TRANSCRIBER: no model configured, audio transcription disabled")
		return moderation.NullTranscriber{}
	}
	cfg := moderation.DefaultWhisperConfig(t.BinaryPath, t.ModelPath)
	if t.Language != "" {
		cfg.Language = t.Language
	}
	if t.TempDir != "" {
		cfg.TempDir = t.TempDir
	}
	return moderation.NewWhisperTranscriber(cfg)
}

// buildLexicon degrades to nil on a missing or malformed lexicon file (§7
// "Missing lexicon file"): transcription continues, but no audio events are
// ever emitted.
func buildLexicon(l config.Lexicon) *moderation.Lexicon {
	if l.Path == "" {
		return nil
	}
	lex, err := moderation.LoadLexicon(l.Path)
	if err != nil {
		log.Printf("LEXICON: failed to load %s: %v, audio events disabled", l.Path, err)
		return nil
	}
	return lex
}

func printBanner(cfg config.Config) {
	fmt.Println("────────────────────────────────────────────────────────")
	fmt.Println(" modrelay — real-time moderation relay")
	fmt.Println("────────────────────────────────────────────────────────")
	fmt.Printf("Control surface: http://127.0.0.1%s\n", cfg.Control.HTTPAddr)
	fmt.Printf("Detector model:  %s\n", cfg.Detector.ModelPath)
	fmt.Printf("Whisper model:   %s\n", cfg.Transcriber.ModelPath)
	fmt.Printf("Lexicon:         %s\n", cfg.Lexicon.Path)
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
