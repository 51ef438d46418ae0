package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// Subsystem loggers. Get falls back to the global logger tagged with the
// name, so a subsystem without an override follows the global level.
var subsystems = struct {
	sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register installs l as the logger of a subsystem.
func Register(name string, l *Logger) {
	subsystems.Lock()
	subsystems.loggers[name] = l
	subsystems.Unlock()
}

// Get returns the logger of a subsystem.
func Get(name string) *Logger {
	subsystems.RLock()
	l, ok := subsystems.loggers[name]
	subsystems.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Reset drops every subsystem logger.
func Reset() {
	subsystems.Lock()
	subsystems.loggers = make(map[string]*Logger)
	subsystems.Unlock()
}

// registerLevels installs a logger per entry of cfg.Levels derived from
// base. Unparsable levels are skipped.
func registerLevels(base *Logger, cfg *Config) {
	Reset()
	for name, lvl := range cfg.Levels {
		level, err := zerolog.ParseLevel(lvl)
		if err != nil {
			continue
		}
		Register(name, base.WithComponent(name).WithLevel(level))
	}
}
