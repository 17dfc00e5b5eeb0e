package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecord()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeGIF()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecord() {
	if c.Record.PollIntervalSeconds == 0 {
		c.Record.PollIntervalSeconds = defaultPollIntervalSeconds
	}
}

func (c *Config) normalizeRender() error {
	c.Render.OpenSCADBinary = strings.TrimSpace(c.Render.OpenSCADBinary)
	if c.Render.OpenSCADBinary == "" {
		if value, ok := os.LookupEnv("SCADREC_OPENSCAD"); ok && strings.TrimSpace(value) != "" {
			c.Render.OpenSCADBinary = strings.TrimSpace(value)
		} else {
			c.Render.OpenSCADBinary = defaultOpenSCADBinary
		}
	}
	c.Render.OpenSCADArgs = strings.TrimSpace(c.Render.OpenSCADArgs)
	c.Render.ImgSize = strings.ReplaceAll(strings.TrimSpace(c.Render.ImgSize), "x", ",")
	c.Render.Camera = strings.TrimSpace(c.Render.Camera)
	if c.Render.TimeoutSeconds == 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	if strings.TrimSpace(c.Render.TempDir) != "" {
		var err error
		if c.Render.TempDir, err = expandPath(c.Render.TempDir); err != nil {
			return fmt.Errorf("render.temp_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeGIF() {
	c.GIF.Encoder = strings.ToLower(strings.TrimSpace(c.GIF.Encoder))
	if c.GIF.Encoder == "" {
		c.GIF.Encoder = defaultGIFEncoder
	}
	c.GIF.FFmpegBinary = strings.TrimSpace(c.GIF.FFmpegBinary)
	if c.GIF.FFmpegBinary == "" {
		c.GIF.FFmpegBinary = defaultFFmpegBinary
	}
	if c.GIF.FrameDelayMS == 0 {
		c.GIF.FrameDelayMS = defaultFrameDelayMS
	}
	if c.GIF.FinalDelayMS == 0 {
		c.GIF.FinalDelayMS = defaultFinalDelayMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
