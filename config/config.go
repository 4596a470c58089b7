// Package config loads engine settings from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration read from a TOML or YAML file.
type Config struct {
	Window  WindowConfig  `toml:"window" yaml:"window"`
	Scene   SceneConfig   `toml:"scene" yaml:"scene"`
	Render  RenderConfig  `toml:"render" yaml:"render"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Debug   bool          `toml:"debug" yaml:"debug"`
}

// WindowConfig sizes and titles the game window.
type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	VSync  bool   `toml:"vsync" yaml:"vsync"`
}

// SceneConfig holds the initial capacity of each resource allocator. They
// grow past these values on demand.
type SceneConfig struct {
	Shaders     int `toml:"shaders" yaml:"shaders"`
	Textures    int `toml:"textures" yaml:"textures"`
	Materials   int `toml:"materials" yaml:"materials"`
	Meshes      int `toml:"meshes" yaml:"meshes"`
	Renderables int `toml:"renderables" yaml:"renderables"`
	Fonts       int `toml:"fonts" yaml:"fonts"`
	Nodes       int `toml:"nodes" yaml:"nodes"`
	Batchers    int `toml:"batchers" yaml:"batchers"`

	BatcherCapacity    int `toml:"batcher_capacity" yaml:"batcher_capacity"`
	BatcherMaxCapacity int `toml:"batcher_max_capacity" yaml:"batcher_max_capacity"` // 0 = unbounded
	LayoutCacheSize    int `toml:"layout_cache_size" yaml:"layout_cache_size"`
}

// RenderConfig holds the clear color, checkerboard fallback and filtering.
type RenderConfig struct {
	ClearColor    [4]float32 `toml:"clear_color" yaml:"clear_color"`
	CheckerWidth  int        `toml:"checker_width" yaml:"checker_width"`
	CheckerHeight int        `toml:"checker_height" yaml:"checker_height"`
	CheckerCount  int        `toml:"checker_count" yaml:"checker_count"` // squares across the width
	LinearFilter  bool       `toml:"linear_filter" yaml:"linear_filter"`
}

// LoggingConfig configures the zap logger and its optional rotating file.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `toml:"format" yaml:"format"` // console, json
	File       string `toml:"file" yaml:"file"`     // empty = stderr
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// Load reads path, applying defaults for anything the file leaves unset.
// The format is picked from the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("read config %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Scene.BatcherCapacity <= 0 {
		return fmt.Errorf("batcher_capacity %d must be positive", c.Scene.BatcherCapacity)
	}
	if c.Scene.BatcherMaxCapacity != 0 && c.Scene.BatcherMaxCapacity < c.Scene.BatcherCapacity {
		return fmt.Errorf("batcher_max_capacity %d is below batcher_capacity %d",
			c.Scene.BatcherMaxCapacity, c.Scene.BatcherCapacity)
	}
	if c.Render.CheckerCount <= 0 {
		return fmt.Errorf("checker_count %d must be positive", c.Render.CheckerCount)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging format %q must be console or json", c.Logging.Format)
	}
	return nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "smol",
			Width:  1024,
			Height: 768,
			VSync:  true,
		},
		Scene: SceneConfig{
			Shaders:         16,
			Textures:        16,
			Materials:       16,
			Meshes:          16,
			Renderables:     16,
			Fonts:           4,
			Nodes:           64,
			Batchers:        8,
			BatcherCapacity: 32,
			LayoutCacheSize: 128,
		},
		Render: RenderConfig{
			ClearColor:    [4]float32{0, 0, 0, 1},
			CheckerWidth:  800,
			CheckerHeight: 600,
			CheckerCount:  16,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
