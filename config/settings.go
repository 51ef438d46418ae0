package config

import (
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
	"github.com/kbukum/beankit/validation"
	"github.com/kbukum/beankit/version"
)

// Settings configures a factory and the application around it. Projects
// extend it by embedding it in their own config structs.
//
// Example:
//
//	type MyConfig struct {
//	    config.Settings `yaml:",inline" mapstructure:",squash"`
//	    Orders OrdersConfig `yaml:"orders" mapstructure:"orders"`
//	}
type Settings struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	AllowCircularReferences bool   `yaml:"allow_circular_references" mapstructure:"allow_circular_references"`
	AllowRawInjection       bool   `yaml:"allow_raw_injection_despite_wrapping" mapstructure:"allow_raw_injection_despite_wrapping"`
	AllowOverriding         bool   `yaml:"allow_descriptor_overriding" mapstructure:"allow_descriptor_overriding"`
	PreInstantiate          bool   `yaml:"pre_instantiate" mapstructure:"pre_instantiate"`
	DefinitionsFile         string `yaml:"definitions_file" mapstructure:"definitions_file"`

	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Inspect       InspectSettings      `yaml:"inspect" mapstructure:"inspect"`
}

// InspectSettings configures the HTTP inspection endpoint.
type InspectSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr" validate:"omitempty,listen_addr"`
}

// SettingsDefaults returns the values a key takes when neither the config
// file nor the environment sets it.
func SettingsDefaults() map[string]any {
	return map[string]any{
		"environment":                          "development",
		"allow_circular_references":            true,
		"allow_raw_injection_despite_wrapping": false,
		"allow_descriptor_overriding":          true,
		"pre_instantiate":                      true,
		"observability.sample_rate":            1.0,
		"observability.insecure":               true,
		"inspect.addr":                         ":8089",
	}
}

// GetSettings returns the base Settings. When Settings is embedded, the
// method is promoted so the embedding struct satisfies bootstrap's Config.
func (s *Settings) GetSettings() *Settings {
	return s
}

// ApplyDefaults fills values that depend on other fields.
// Override this in embedding structs and call s.Settings.ApplyDefaults() first.
func (s *Settings) ApplyDefaults() {
	if s.Environment == "" {
		s.Environment = "development"
	}
	if s.Environment == "development" {
		s.Debug = true
	}
	if s.Version == "" {
		s.Version = version.Get().Short()
	}
	if s.Logging.ServiceName == "" && s.Name != "" {
		s.Logging.ServiceName = s.Name
	}
	s.Logging.ApplyDefaults()
	if s.Debug && s.Logging.Level == "info" {
		s.Logging.Level = "debug"
	}
	if s.Inspect.Enabled && s.Inspect.Addr == "" {
		s.Inspect.Addr = ":8089"
	}
}

// Validate checks field tags and the rules that span several fields.
func (s *Settings) Validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(s))
	obs := s.Observability
	v.Custom(!(obs.TracingEnabled || obs.MetricsEnabled) || obs.Endpoint != "",
		"observability.endpoint", "is required when tracing or metrics are enabled")
	v.Custom(!s.Inspect.Enabled || s.Inspect.Addr != "",
		"inspect.addr", "is required when inspect is enabled")
	return v.Validate()
}

// LoadSettings loads Settings for a service with SettingsDefaults applied,
// then fills derived values and validates the result.
func LoadSettings(serviceName string, opts ...LoaderOption) (*Settings, error) {
	var s Settings
	opts = append([]LoaderOption{WithDefaults(SettingsDefaults())}, opts...)
	if err := LoadConfig(serviceName, &s, opts...); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = serviceName
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
