// Package config loads application settings and declarative object
// definitions.
//
// Settings come from Viper: defaults, then config.yml found in the standard
// search paths, then environment variables and an optional .env file.
// Environment variables map onto nested keys by splitting on underscores,
// so INSPECT_ADDR sets inspect.addr.
//
//	settings, err := config.LoadSettings("orders")
//
// Definitions are the declarative front end of the factory: a YAML file
// listing descriptors that Definitions.Register converts and registers.
//
//	defs, err := config.LoadDefinitions("beans.yml")
//	err = defs.Register(f)
package config
