// Package config loads and validates the YAML configuration of driver and
// controller processes. A driver config declares which components the
// agent exposes and how; building them goes through a platform registry so
// the config never names concrete types.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
	"github.com/joshuasello/mycelium-iot/platform"
)

// Duration wraps time.Duration with YAML support for values like "5s"
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("invalid duration %q: %w", raw, errors.ErrInvalidConfig),
			"Duration", "UnmarshalYAML", "parsing")
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ComponentConfig declares one exposed component
type ComponentConfig struct {
	// Type is the platform registry tag, e.g. "led" or "servo"
	Type string `yaml:"type"`

	// Setup carries type-specific construction arguments
	Setup map[string]any `yaml:"setup,omitempty"`
}

// TransportConfig holds frame and write settings shared by both processes
type TransportConfig struct {
	MaxFrameSize int      `yaml:"max_frame_size,omitempty"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty"`
}

// TelemetryConfig enables NATS event publishing on the driver
type TelemetryConfig struct {
	Enabled       bool     `yaml:"enabled"`
	URL           string   `yaml:"url,omitempty"`
	SubjectPrefix string   `yaml:"subject_prefix,omitempty"`
	ReconnectWait Duration `yaml:"reconnect_wait,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// DriverConfig is the full configuration of one driver process
type DriverConfig struct {
	// Listen is the TCP address controllers connect to
	Listen string `yaml:"listen"`

	// Platform selects the component factory set, e.g. "dummy"
	Platform string `yaml:"platform,omitempty"`

	Components map[string]ComponentConfig `yaml:"components"`

	Transport       TransportConfig `yaml:"transport,omitempty"`
	Telemetry       TelemetryConfig `yaml:"telemetry,omitempty"`
	Metrics         MetricsConfig   `yaml:"metrics,omitempty"`
	QueueDepth      int             `yaml:"queue_depth,omitempty"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout,omitempty"`
}

// DefaultDriverConfig returns a config with sensible defaults and no
// components
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Listen:          ":7600",
		Platform:        "dummy",
		Metrics:         MetricsConfig{Address: ":9090", Path: "/metrics"},
		QueueDepth:      16,
		ShutdownTimeout: Duration(5 * time.Second),
	}
}

// Validate checks the driver configuration
func (c DriverConfig) Validate() error {
	if c.Listen == "" {
		return errors.WrapInvalid(
			fmt.Errorf("listen address: %w", errors.ErrMissingConfig),
			"DriverConfig", "Validate", "listen check")
	}
	if len(c.Components) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("at least one component: %w", errors.ErrMissingConfig),
			"DriverConfig", "Validate", "components check")
	}
	for id, cc := range c.Components {
		if id == "" {
			return errors.WrapInvalid(
				fmt.Errorf("component id must not be empty: %w", errors.ErrInvalidConfig),
				"DriverConfig", "Validate", "component id check")
		}
		if cc.Type == "" {
			return errors.WrapInvalid(
				fmt.Errorf("component %q has no type: %w", id, errors.ErrMissingConfig),
				"DriverConfig", "Validate", "component type check")
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("telemetry enabled without url: %w", errors.ErrMissingConfig),
			"DriverConfig", "Validate", "telemetry check")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.WrapInvalid(
			fmt.Errorf("metrics enabled without address: %w", errors.ErrMissingConfig),
			"DriverConfig", "Validate", "metrics check")
	}
	return nil
}

// BuildComponents constructs every declared component through the platform
// registry, returning them keyed by component id
func (c DriverConfig) BuildComponents(registry *platform.Registry) (map[string]component.Component, error) {
	components := make(map[string]component.Component, len(c.Components))
	for id, cc := range c.Components {
		comp, err := registry.New(cc.Type, platform.Setup(cc.Setup))
		if err != nil {
			return nil, errors.Wrap(err, "DriverConfig", "BuildComponents",
				fmt.Sprintf("building component %q", id))
		}
		components[id] = comp
	}
	return components, nil
}

// ControllerConfig is the configuration of one controller process
type ControllerConfig struct {
	// Driver is the driver's TCP address
	Driver string `yaml:"driver"`

	CallTimeout Duration        `yaml:"call_timeout,omitempty"`
	Transport   TransportConfig `yaml:"transport,omitempty"`
}

// DefaultControllerConfig returns a config with sensible defaults
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Driver:      "localhost:7600",
		CallTimeout: Duration(5 * time.Second),
	}
}

// Validate checks the controller configuration
func (c ControllerConfig) Validate() error {
	if c.Driver == "" {
		return errors.WrapInvalid(
			fmt.Errorf("driver address: %w", errors.ErrMissingConfig),
			"ControllerConfig", "Validate", "driver check")
	}
	return nil
}

// LoadDriver reads a driver config file, applying defaults for absent keys
func LoadDriver(path string) (DriverConfig, error) {
	cfg := DefaultDriverConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return DriverConfig{}, err
	}
	return cfg, nil
}

// LoadController reads a controller config file, applying defaults for
// absent keys
func LoadController(path string) (ControllerConfig, error) {
	cfg := DefaultControllerConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%v: %w", err, errors.ErrMissingConfig),
			"config", "loadYAML", "reading file")
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%v: %w", err, errors.ErrInvalidConfig),
			"config", "loadYAML", "decoding yaml")
	}
	return nil
}
