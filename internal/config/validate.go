package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRecord(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateGIF(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRecord() error {
	if c.Record.PollIntervalSeconds <= 0 {
		return errors.New("record.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.TimeoutSeconds < 0 {
		return errors.New("render.timeout_seconds must be >= 0")
	}
	if _, err := shlex.Split(c.Render.OpenSCADArgs); err != nil {
		return fmt.Errorf("render.openscad_args: %w", err)
	}
	if c.Render.ImgSize != "" {
		parts := strings.Split(c.Render.ImgSize, ",")
		if len(parts) != 2 {
			return fmt.Errorf("render.imgsize must be WIDTH,HEIGHT (got %q)", c.Render.ImgSize)
		}
		for _, part := range parts {
			value, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || value <= 0 {
				return fmt.Errorf("render.imgsize must be WIDTH,HEIGHT (got %q)", c.Render.ImgSize)
			}
		}
	}
	return nil
}

func (c *Config) validateGIF() error {
	switch c.GIF.Encoder {
	case EncoderBuiltin, EncoderFFmpeg:
	default:
		return fmt.Errorf("gif.encoder must be %q or %q (got %q)", EncoderBuiltin, EncoderFFmpeg, c.GIF.Encoder)
	}
	if err := ensurePositiveMap(map[string]int{
		"gif.frame_delay_ms": c.GIF.FrameDelayMS,
		"gif.final_delay_ms": c.GIF.FinalDelayMS,
	}); err != nil {
		return err
	}
	if c.GIF.Width < 0 {
		return errors.New("gif.width must be >= 0")
	}
	if c.GIF.LoopCount < -1 {
		return errors.New("gif.loop_count must be >= -1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
