// Package config loads depthmesh settings from YAML, the environment and
// command line flags.
package config

import (
	"time"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/gateway"
	"github.com/soypat/depthmesh/internal/logger"
	"github.com/soypat/depthmesh/render"
)

// Config is the root configuration.
type Config struct {
	Log       logger.Config   `yaml:"log"`
	Gateway   gateway.Config  `yaml:"gateway"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Render    RenderConfig    `yaml:"render"`
}

// StoreConfig selects the sqlite database holding conversion records.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Workers bounds concurrent conversion processing.
	Workers int `yaml:"workers"`
}

// AssemblerConfig mirrors depthmesh.Assembler.
type AssemblerConfig struct {
	CanonicalSize  float64 `yaml:"canonical_size"`
	DampedStrength float64 `yaml:"damped_strength"`
	Seed           int64   `yaml:"seed"`
}

// Assembler returns the configured mesh assembler.
func (a AssemblerConfig) Assembler() depthmesh.Assembler {
	return depthmesh.Assembler{
		CanonicalSize:  a.CanonicalSize,
		DampedStrength: a.DampedStrength,
		Seed:           a.Seed,
	}
}

// RenderConfig holds preview defaults.
type RenderConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Supersample int     `yaml:"supersample"`
	Fovy        float64 `yaml:"fovy"`
	Color       string  `yaml:"color"`
	Background  string  `yaml:"background"`
	MarkerSize  float64 `yaml:"marker_size"`
}

// PreviewOptions returns preview options for the configured defaults.
func (r RenderConfig) PreviewOptions() render.PreviewOptions {
	return render.PreviewOptions{
		Width:       r.Width,
		Height:      r.Height,
		Supersample: r.Supersample,
		Fovy:        r.Fovy,
		Color:       r.Color,
		Background:  r.Background,
		MarkerSize:  r.MarkerSize,
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: logger.Default(),
		Gateway: gateway.Config{
			BaseURL:           gateway.DefaultBaseURL,
			Model:             gateway.DefaultModel,
			Timeout:           gateway.DefaultTimeout,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Store: StoreConfig{
			DSN: "depthmesh.db",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			Workers:         4,
		},
		Assembler: AssemblerConfig{
			CanonicalSize:  depthmesh.DefaultCanonicalSize,
			DampedStrength: depthmesh.DefaultDampedStrength,
		},
		Render: RenderConfig{
			Width:       800,
			Height:      600,
			Supersample: 2,
			Fovy:        30,
			Color:       "#d47a7a",
			Background:  "#fff8e3",
			MarkerSize:  0.06,
		},
	}
}
