// Package logger wraps zerolog with the field names and helpers used across
// beankit.
//
// Init configures the global logger from a Config. Subsystems take their
// logger from Get, which honors per-subsystem levels:
//
//	logging:
//	  level: info
//	  levels:
//	    factory: debug
//
//	log := logger.Get("factory")
//	log.Debug("Creating instance", logger.Fields(logger.FieldBean, name))
package logger
