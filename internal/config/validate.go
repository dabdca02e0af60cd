package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return fmt.Errorf("config: paths.work_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: paths.log_dir must not be empty")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: limits.max_upload_bytes must be positive, got %d", c.Limits.MaxUploadBytes)
	}
	if c.Limits.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("config: limits.request_timeout_seconds must be positive, got %d", c.Limits.RequestTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.FrameRate < 1 || c.Render.FrameRate > 120 {
		return fmt.Errorf("config: render.frame_rate must be between 1 and 120, got %d", c.Render.FrameRate)
	}
	// The fingerboard panel is 800x300; anything smaller cannot hold it.
	if c.Render.CanvasWidth < 840 || c.Render.CanvasHeight < 360 {
		return fmt.Errorf("config: render canvas must be at least 840x360, got %dx%d", c.Render.CanvasWidth, c.Render.CanvasHeight)
	}
	// Most pixel formats ffmpeg accepts for h264 need even dimensions.
	if c.Render.CanvasWidth%2 != 0 || c.Render.CanvasHeight%2 != 0 {
		return fmt.Errorf("config: render canvas dimensions must be even, got %dx%d", c.Render.CanvasWidth, c.Render.CanvasHeight)
	}
	if c.Render.TailSeconds < 0 {
		return fmt.Errorf("config: render.tail_seconds must not be negative, got %g", c.Render.TailSeconds)
	}
	return nil
}

func (c *Config) validateEncode() error {
	if c.Encode.Codec == "" {
		return fmt.Errorf("config: encode.codec must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
