package di

// InfraNames defines the names under which bootstrap registers its
// infrastructure objects. Applications embed this struct in their own name
// sets so every layer refers to the same keys.
type InfraNames struct {
	// Core infrastructure
	Settings  string
	Logger    string
	Validator string
	Factory   string

	// Observability
	TracerProvider string
	MeterProvider  string
	Observer       string

	// Runtime
	Components string
	Inspect    string
}

// Infra contains the infrastructure object names used by bootstrap.
var Infra = InfraNames{
	Settings:  "settings",
	Logger:    "logger",
	Validator: "validator",
	Factory:   "beanFactory",

	TracerProvider: "tracerProvider",
	MeterProvider:  "meterProvider",
	Observer:       "creationObserver",

	Components: "componentRegistry",
	Inspect:    "inspectServer",
}
