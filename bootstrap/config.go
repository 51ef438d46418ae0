package bootstrap

import (
	"github.com/kbukum/beankit/config"
)

// Config is the constraint for application configuration types. Any struct
// embedding config.Settings satisfies it through promoted methods.
//
// Example:
//
//	type MyConfig struct {
//	    config.Settings `yaml:",inline" mapstructure:",squash"`
//	    Orders OrdersConfig `yaml:"orders" mapstructure:"orders"`
//	}
//
//	app, err := bootstrap.NewApp[*MyConfig](&cfg)
type Config interface {
	GetSettings() *config.Settings
	ApplyDefaults()
	Validate() error
}
