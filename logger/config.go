package logger

import (
	"fmt"
	"slices"
	"sort"
)

var (
	levels  = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	formats = []string{"json", FormatConsole, FormatPretty}
)

// Config holds the logging settings of a service.
//
//	logging:
//	  level: info
//	  format: json
//	  levels:
//	    factory: debug
//	    inspect: warn
type Config struct {
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	Level       string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format      string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console pretty"`
	Output      string `yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
	NoColor     bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp   bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller      bool   `yaml:"caller" mapstructure:"caller"`

	// Levels overrides Level for the loggers returned by Get, keyed by
	// subsystem: factory, components, inspect, observability.
	Levels map[string]string `yaml:"levels" mapstructure:"levels" validate:"dive,oneof=trace debug info warn error fatal"`
}

// ApplyDefaults fills level, format and output and turns timestamps on.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	c.Timestamp = true
}

// Validate checks the level and format, including per-subsystem levels.
func (c *Config) Validate() error {
	if !slices.Contains(levels, c.Level) {
		return fmt.Errorf("logging.level must be one of %v (got: %s)", levels, c.Level)
	}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", formats, c.Format)
	}
	names := make([]string, 0, len(c.Levels))
	for name := range c.Levels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !slices.Contains(levels, c.Levels[name]) {
			return fmt.Errorf("logging.levels.%s must be one of %v (got: %s)", name, levels, c.Levels[name])
		}
	}
	return nil
}

// lowestLevel returns the most verbose of Level and the overrides.
func (c *Config) lowestLevel() string {
	lowest := slices.Index(levels, c.Level)
	for _, l := range c.Levels {
		if i := slices.Index(levels, l); i >= 0 && (lowest < 0 || i < lowest) {
			lowest = i
		}
	}
	if lowest < 0 {
		return "info"
	}
	return levels[lowest]
}
