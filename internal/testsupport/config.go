// Package testsupport builds throwaway configurations for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scoreframe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.APIToken = "test-token"
	cfgVal.Encode.Verify = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFrameRate overrides the render frame rate on the test config.
func WithFrameRate(fps int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.FrameRate = fps
	}
}

// WithTimeoutSeconds overrides the per-request budget on the test config.
func WithTimeoutSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Limits.RequestTimeoutSeconds = seconds
	}
}

// WithFakeFFmpeg installs a stub ffmpeg that consumes stdin and writes a
// placeholder file at its final argument, pointing the config's encode
// section at it.
func WithFakeFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "ffmpeg")
		script := []byte("#!/bin/sh\nfor arg in \"$@\"; do out=\"$arg\"; done\ncat > /dev/null\nprintf 'fake-mp4' > \"$out\"\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub ffmpeg: %v", err)
		}
		b.cfg.Encode.FFmpegBinary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
