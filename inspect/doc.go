// Package inspect exposes a factory over HTTP for diagnostics.
//
// The handler serves:
//
//	GET /beans         every descriptor and manual singleton with its state
//	GET /beans/:name   one managed object, including its dependencies
//	GET /graph         the dependency graph with start levels
//	GET /health        health of the objects that report it
//
// Server wraps the handler in an http.Server and implements
// component.Component, so a factory can start its own inspection endpoint.
package inspect
