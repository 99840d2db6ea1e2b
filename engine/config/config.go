package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/magma/engine/core"
)

// DeviceConfig is the device selection policy. Exactly one of FirstDevice
// or DeviceID must be effectively specified.
type DeviceConfig struct {
	Driver      string  `toml:"driver"`
	FirstDevice bool    `toml:"first_device"`
	DeviceID    *uint32 `toml:"device_id"`
}

type ShaderConfig struct {
	Path       string `toml:"path"`
	EntryPoint string `toml:"entry_point"`
}

type ExecutionConfig struct {
	ElementCount uint32 `toml:"element_count"`
	TimeoutMS    uint32 `toml:"timeout_ms"`
	Validation   bool   `toml:"validation"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Config is the immutable process configuration record. Assemble it with
// DefaultConfig or Load; components receive it fully formed.
type Config struct {
	Device    DeviceConfig    `toml:"device"`
	Shader    ShaderConfig    `toml:"shader"`
	Execution ExecutionConfig `toml:"execution"`
	Logging   LoggingConfig   `toml:"logging"`
}

func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Driver:      "vulkan",
			FirstDevice: true,
		},
		Shader: ShaderConfig{
			Path:       "assets/shaders/double.comp.spv",
			EntryPoint: "main",
		},
		Execution: ExecutionConfig{
			ElementCount: 16384,
			TimeoutMS:    250,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing or
// unreadable settings source is a fatal startup error for the caller.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ConfigurationError("unable to read config %s: %s", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, core.ConfigurationError("unable to parse config %s: %s", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.Device.FirstDevice && c.Device.DeviceID == nil {
		return core.ConfigurationError("neither selection mode specified")
	}
	if c.Device.Driver == "" {
		return core.ConfigurationError("no driver specified")
	}
	if c.Shader.Path == "" {
		return core.ConfigurationError("no shader path specified")
	}
	if c.Shader.EntryPoint == "" {
		return core.ConfigurationError("no shader entry point specified")
	}
	if c.Execution.ElementCount == 0 {
		return core.ConfigurationError("element count must be positive")
	}
	if c.Execution.TimeoutMS == 0 {
		return core.ConfigurationError("fence timeout must be positive")
	}
	return nil
}
