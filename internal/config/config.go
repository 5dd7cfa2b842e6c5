package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes one conversion job. Fields carry yaml tags so a job can
// be stored in a file and passed with -config.
type Config struct {
	InputPath    string  `yaml:"input"`
	OutputVideo  string  `yaml:"output"`
	Schema       string  `yaml:"schema"` // canonical or legacy diff layout
	FPS          float64 `yaml:"fps"`    // 0 keeps the manifest rate
	Width        int     `yaml:"width"`  // 0 keeps the animation size
	Height       int     `yaml:"height"`
	Workers      int     `yaml:"workers"`
	VideoEncoder string  `yaml:"encoder"`
	Quality      int     `yaml:"quality"`
	Background   string  `yaml:"background"` // hex colour to flatten alpha onto, empty keeps alpha
	Sequence     bool    `yaml:"sequence"`   // write frame_%04d.png files and encode from disk
	FramesDir    string  `yaml:"frames_dir"` // keep the PNG sequence here instead of a temp dir
	ShowStats    bool    `yaml:"stats"`
	Debug        bool    `yaml:"debug"`
	BuildVersion string  `yaml:"-"`
}

// SegmentParams is what an effect needs to know about the frames it filters.
type SegmentParams struct {
	Width, Height int // source frame size
	OutWidth      int // 0 keeps the source size
	OutHeight     int
	FPS           float64
	FrameCount    int
	Background    string
	KeepAlpha     bool
	Debug         bool
}

// Load reads a YAML job file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Relative paths in a job file are relative to the file.
	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.InputPath, &cfg.OutputVideo, &cfg.FramesDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return &cfg, nil
}

// Write stores the job as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no job can run with.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path is empty")
	}
	if c.OutputVideo == "" {
		return fmt.Errorf("output path is empty")
	}
	switch c.Schema {
	case "", "canonical", "legacy":
	default:
		return fmt.Errorf("unknown schema %q (canonical, legacy)", c.Schema)
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must not be negative: %v", c.FPS)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("size must not be negative: %dx%d", c.Width, c.Height)
	}
	if (c.Width == 0) != (c.Height == 0) {
		return fmt.Errorf("width and height must be set together: %dx%d", c.Width, c.Height)
	}
	if c.Quality < 0 {
		return fmt.Errorf("quality must not be negative: %d", c.Quality)
	}
	if c.Background != "" {
		if _, err := ParseHexColor(c.Background); err != nil {
			return err
		}
	}
	return nil
}

// Container is the lower-case extension of the output file without the dot.
func (c *Config) Container() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(c.OutputVideo)), ".")
}

// KeepAlpha reports whether the output keeps transparency: only webm can
// carry it, and only when no background is requested.
func (c *Config) KeepAlpha() bool {
	return c.Background == "" && c.Container() == "webm"
}
