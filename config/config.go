package config

import (
	"errors"
	"fmt"
	"os"

	"LaserRange/engine"
	"LaserRange/logger"
	"LaserRange/ranging"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Tolerance struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type Capture struct {
	// Device is a camera index ("0") or a file path / stream URL.
	Device string `yaml:"device"`
}

type Display struct {
	Window     bool   `yaml:"window"`
	WindowName string `yaml:"windowName"`
}

// Config mirrors config.yaml. Ports set to 0 disable the matching surface.
type Config struct {
	KnownDistance float64       `yaml:"knownDistance"`
	KnownWidth    float64       `yaml:"knownWidth"`
	SampleCount   int           `yaml:"sampleCount"`
	Tolerance     Tolerance     `yaml:"tolerance"`
	Detection     engine.Params `yaml:"detection"`
	Capture       Capture       `yaml:"capture"`
	Display       Display       `yaml:"display"`

	HTTPPort      int    `yaml:"httpPort"`
	RPCPort       int    `yaml:"rpcPort"`
	MetricsPort   int    `yaml:"metricsPort"`
	UseRegServer  bool   `yaml:"useRegServer"`
	RegServerHost string `yaml:"regServerHost"`
	RegServerPort int    `yaml:"regServerPort"`
	LogMode       string `yaml:"logMode"`
}

func Default() Config {
	r := ranging.DefaultParams()
	return Config{
		KnownDistance: r.KnownDistance,
		KnownWidth:    r.KnownWidth,
		SampleCount:   r.SampleCount,
		Tolerance:     Tolerance{Min: r.ToleranceMin, Max: r.ToleranceMax},
		Detection:     engine.DefaultParams(),
		Capture:       Capture{Device: "0"},
		Display:       Display{Window: true, WindowName: "Laser Pointer Detection"},
		HTTPPort:      8080,
		RPCPort:       50051,
		MetricsPort:   50053,
		RegServerHost: "127.0.0.1",
		RegServerPort: 8000,
		LogMode:       logger.ModeProduction,
	}
}

// Load overlays the file at path on the defaults. A missing file is not an
// error; the defaults are returned and a warning is logged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Log().Warn("config file not found, using defaults", zap.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	if c.KnownDistance <= 0 {
		return fmt.Errorf("knownDistance must be positive, got %v", c.KnownDistance)
	}
	if c.KnownWidth <= 0 {
		return fmt.Errorf("knownWidth must be positive, got %v", c.KnownWidth)
	}
	if c.SampleCount < 1 {
		return fmt.Errorf("sampleCount must be at least 1, got %d", c.SampleCount)
	}
	if c.Tolerance.Min > c.Tolerance.Max {
		return fmt.Errorf("tolerance band [%v, %v] is empty", c.Tolerance.Min, c.Tolerance.Max)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if c.Capture.Device == "" {
		return errors.New("capture.device must be set")
	}
	for name, port := range map[string]int{"httpPort": c.HTTPPort, "rpcPort": c.RPCPort, "metricsPort": c.MetricsPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.UseRegServer && (c.RegServerHost == "" || c.RegServerPort <= 0) {
		return errors.New("useRegServer requires regServerHost and regServerPort")
	}
	switch c.LogMode {
	case "", logger.ModeProduction, logger.ModeDevelopment:
	default:
		return fmt.Errorf("unknown logMode %q", c.LogMode)
	}
	return nil
}

func (c Config) Ranging() ranging.Params {
	return ranging.Params{
		KnownDistance: c.KnownDistance,
		KnownWidth:    c.KnownWidth,
		SampleCount:   c.SampleCount,
		ToleranceMin:  c.Tolerance.Min,
		ToleranceMax:  c.Tolerance.Max,
	}
}
