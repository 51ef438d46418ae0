// Package typeinfo is the introspection layer of the engine. It describes
// managed types as constructors, factory routines and settable properties,
// and resolves type names through a chain of loaders.
//
// Go has neither constructors nor overloading, so a type's constructors are
// the functions registered for it with Define:
//
//	info := typeinfo.MustDefine[*Service](
//		typeinfo.Constructor(NewService, "repo"),
//		typeinfo.Constructor(NewServiceWithTimeout, "repo", "timeout"),
//		typeinfo.Factory("fromEnv", ServiceFromEnv),
//	)
//	loader.Register(info)
//
// A pointer-to-struct type with no registered constructor gets a zero-value
// constructor. Properties are exported fields, renamed with a `bean:"name"`
// tag or hidden with `bean:"-"`, plus SetXxx methods.
package typeinfo
