package moderation

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transcriber turns a 16kHz mono audio window into text (§4.5: model_size
// "small", language "ko", beam_size 1, vad_filter disabled, no word
// timestamps). It is the moderation core's only dependency on an external
// speech model, kept behind an interface so a session can run with
// NullTranscriber when no model is configured (§7 "Missing STT model").
type Transcriber interface {
	Transcribe(ctx context.Context, window AudioWindow) (TranscriptionResult, error)
}

// NullTranscriber always returns empty text, disabling audio event emission
// while leaving the rest of C5 (windowing, queueing) running.
type NullTranscriber struct{}

// Transcribe implements Transcriber.
func (NullTranscriber) Transcribe(_ context.Context, window AudioWindow) (TranscriptionResult, error) {
	return TranscriptionResult{Text: "", StartWall: window.StartWall}, nil
}

// WhisperConfig configures the CLI-driven transcriber.
type WhisperConfig struct {
	BinaryPath string // path to a whisper.cpp-compatible CLI binary
	ModelPath  string
	Language   string // default "ko"
	TempDir    string // directory for scratch WAV files
}

// DefaultWhisperConfig returns the §4.5 defaults (language "ko", system temp dir).
func DefaultWhisperConfig(binaryPath, modelPath string) WhisperConfig {
	return WhisperConfig{
		BinaryPath: binaryPath,
		ModelPath:  modelPath,
		Language:   "ko",
		TempDir:    os.TempDir(),
	}
}

// WhisperTranscriber transcribes by writing the window to a scratch WAV file
// and invoking an external whisper.cpp-compatible CLI, matching the
// model_size="small", beam_size=1, vad_filter=False, word_timestamps=False
// contract of the original Python STT engine. The exec+JSON-result contract
// follows the conventions of github.com/sklyt/whisper's result schema; its
// live-microphone capture engine is not reused since C5 feeds pre-windowed
// PCM rather than driving its own mic loop (see DESIGN.md).
type WhisperTranscriber struct {
	cfg WhisperConfig
}

// NewWhisperTranscriber creates a transcriber bound to the given CLI config.
func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if cfg.Language == "" {
		cfg.Language = "ko"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &WhisperTranscriber{cfg: cfg}
}

type whisperResult struct {
	Text string `json:"text"`
}

// Transcribe writes the window as a WAV file, runs the whisper CLI against
// it, and parses its JSON stdout. The scratch file is removed unconditionally
// on return.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, window AudioWindow) (TranscriptionResult, error) {
	pcm := NormalizeAndResample(window)

	wavPath := filepath.Join(t.cfg.TempDir, fmt.Sprintf("modrelay-window-%d.wav", window.StartWall.UnixNano()))
	if err := writeWAV(wavPath, pcm, targetSampleRate); err != nil {
		return TranscriptionResult{}, fmt.Errorf("write scratch wav: %w", err)
	}
	defer os.Remove(wavPath)

	args := []string{
		"--model", t.cfg.ModelPath,
		"--language", t.cfg.Language,
		"--beam-size", "1",
		"--best-of", "1",
		"--no-vad",
		"--output-json",
		"--file", wavPath,
	}
	cmd := exec.CommandContext(ctx, t.cfg.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return TranscriptionResult{}, fmt.Errorf("whisper cli: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var res whisperResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return TranscriptionResult{}, fmt.Errorf("parse whisper output: %w", err)
	}

	return TranscriptionResult{Text: strings.TrimSpace(res.Text), StartWall: window.StartWall}, nil
}

// writeWAV writes a mono 16-bit PCM WAV file from float32 samples in
// [-1, 1]. Hand-rolled in the manner of internal/call/webm.go's manual
// binary container encoding — no WAV-writing library appears anywhere in
// the example pack (see DESIGN.md).
func writeWAV(path string, samples []float32, sampleRate int) error {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}

	dataSize := len(pcm) * 2
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM format tag
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, pcm)

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
