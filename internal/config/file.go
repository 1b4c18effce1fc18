package config

// This file implements the optional TOML config file. The file is decoded on
// top of the current values, so keys it omits keep their defaults; CLI flags
// are applied afterwards and win over both.

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

const defaultConfigPath = "~/.config/vidoptimizer/config.toml"

type fileTools struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
}

type fileEncoding struct {
	Codec        string `toml:"codec"`
	Acceleration string `toml:"acceleration"`
	AudioCodec   string `toml:"audio_codec"`
	AudioBitrate string `toml:"audio_bitrate"`
	OutputSuffix string `toml:"output_suffix"`
}

type fileScheduling struct {
	Workers    int    `toml:"workers"`
	JobTimeout string `toml:"job_timeout"`
}

type fileBehavior struct {
	SkipExisting bool `toml:"skip_existing"`
	ShowProgress bool `toml:"show_progress"`
}

type fileLogging struct {
	Verbose bool   `toml:"verbose"`
	Color   string `toml:"color"`
	File    string `toml:"file"`
	Format  string `toml:"format"`
}

// fileConfig is the on-disk layout of config.toml.
type fileConfig struct {
	Tools      fileTools      `toml:"tools"`
	Encoding   fileEncoding   `toml:"encoding"`
	Scheduling fileScheduling `toml:"scheduling"`
	Behavior   fileBehavior   `toml:"behavior"`
	Logging    fileLogging    `toml:"logging"`
}

func fileFromConfig(c *Config) fileConfig {
	timeout := ""
	if c.JobTimeout > 0 {
		timeout = c.JobTimeout.String()
	}
	return fileConfig{
		Tools: fileTools{FFmpegPath: c.FFmpegPath, FFprobePath: c.FFprobePath},
		Encoding: fileEncoding{
			Codec:        string(c.Codec),
			Acceleration: string(c.Acceleration),
			AudioCodec:   c.AudioCodec,
			AudioBitrate: c.AudioBitrate,
			OutputSuffix: c.OutputSuffix,
		},
		Scheduling: fileScheduling{Workers: c.Workers, JobTimeout: timeout},
		Behavior:   fileBehavior{SkipExisting: c.SkipExisting, ShowProgress: c.ShowProgress},
		Logging: fileLogging{
			Verbose: c.Verbose,
			Color:   string(c.ColorMode),
			File:    c.LogFile,
			Format:  string(c.LogFormat),
		},
	}
}

func (f *fileConfig) apply(c *Config) error {
	codec, err := ParseCodec(f.Encoding.Codec)
	if err != nil {
		return err
	}
	accel, err := ParseAcceleration(f.Encoding.Acceleration)
	if err != nil {
		return err
	}
	var timeout time.Duration
	if s := strings.TrimSpace(f.Scheduling.JobTimeout); s != "" {
		timeout, err = time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("scheduling.job_timeout: %w", err)
		}
	}
	logFile, err := ExpandPath(f.Logging.File)
	if err != nil {
		return err
	}

	c.FFmpegPath = strings.TrimSpace(f.Tools.FFmpegPath)
	c.FFprobePath = strings.TrimSpace(f.Tools.FFprobePath)
	c.Codec = codec
	c.Acceleration = accel
	c.AudioCodec = strings.TrimSpace(f.Encoding.AudioCodec)
	c.AudioBitrate = f.Encoding.AudioBitrate
	c.OutputSuffix = f.Encoding.OutputSuffix
	c.Workers = f.Scheduling.Workers
	c.JobTimeout = timeout
	c.SkipExisting = f.Behavior.SkipExisting
	c.ShowProgress = f.Behavior.ShowProgress
	c.Verbose = f.Logging.Verbose
	c.ColorMode = ColorMode(strings.ToLower(strings.TrimSpace(f.Logging.Color)))
	c.LogFile = logFile
	c.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(f.Logging.Format)))
	return nil
}

// LoadFile overlays the TOML file at path onto c. An empty path means the
// default location; a missing default file is not an error, a missing
// explicit file is. It returns the resolved path and whether it was read.
func LoadFile(c *Config, path string) (string, bool, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return resolved, false, nil
		}
		return "", false, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	fc := fileFromConfig(c)
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return "", false, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := fc.apply(c); err != nil {
		return "", false, fmt.Errorf("config %s: %w", resolved, err)
	}
	return resolved, true, nil
}

// DefaultConfigPath returns the absolute default config file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// CreateSample writes the sample configuration file to path, creating
// parent directories as needed.
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

// ExpandPath resolves a leading "~" and returns a cleaned absolute path.
// The empty string is returned unchanged.
func ExpandPath(pathValue string) (string, error) {
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
