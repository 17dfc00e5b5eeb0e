package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Record contains configuration for the save-event recorder.
type Record struct {
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
	// SkipIdentical drops saves whose content matches the previous snapshot.
	SkipIdentical bool `toml:"skip_identical"`
}

// Render contains configuration for the OpenSCAD renderer.
type Render struct {
	OpenSCADBinary string `toml:"openscad_binary"`
	OpenSCADArgs   string `toml:"openscad_args"`
	ImgSize        string `toml:"imgsize"`
	Camera         string `toml:"camera"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// TempDir holds the scratch .scad file. Empty means the working directory
	// so relative use/include statements resolve like the original model.
	TempDir string `toml:"temp_dir"`
}

// GIF contains configuration for animation assembly.
type GIF struct {
	Encoder      string `toml:"encoder"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
	FrameDelayMS int    `toml:"frame_delay_ms"`
	FinalDelayMS int    `toml:"final_delay_ms"`
	Width        int    `toml:"width"`
	LoopCount    int    `toml:"loop_count"`
	Optimize     bool   `toml:"optimize"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File enables a log file under paths.log_dir.
	File bool `toml:"file"`
}

// Config encapsulates all configuration values for scadrec.
//
// Configuration sections by subsystem:
//   - Paths: log directory
//   - Record: polling interval and duplicate handling
//   - Render: openscad binary, arguments, and timeouts
//   - GIF: encoder selection and frame timing
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Record  Record  `toml:"record"`
	Render  Render  `toml:"render"`
	GIF     GIF     `toml:"gif"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scadrec/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scadrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory when file logging is enabled.
func (c *Config) EnsureDirectories() error {
	if !c.Logging.File || strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// PollInterval returns the recorder polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Record.PollIntervalSeconds * float64(time.Second))
}

// RenderTimeout returns the per-snapshot render timeout.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// FrameDelay returns the display time of every frame but the last.
func (c *Config) FrameDelay() time.Duration {
	return time.Duration(c.GIF.FrameDelayMS) * time.Millisecond
}

// FinalDelay returns the display time of the last frame.
func (c *Config) FinalDelay() time.Duration {
	return time.Duration(c.GIF.FinalDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
