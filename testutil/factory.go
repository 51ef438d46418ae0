package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
)

type logWriter struct{ t testing.TB }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Logger returns a debug logger writing JSON lines to t.Log.
func Logger(t testing.TB) *logger.Logger {
	cfg := &logger.Config{Level: "debug", Format: "json", Output: "stdout"}
	return logger.NewWithWriter(cfg, t.Name(), logWriter{t: t})
}

// NewFactory creates a factory logging to t and registers a cleanup that
// destroys its singletons. Options are applied after the logger, so a
// WithLogger option wins.
func NewFactory(t testing.TB, opts ...factory.Option) *factory.Factory {
	t.Helper()
	f := factory.New(append([]factory.Option{factory.WithLogger(Logger(t))}, opts...)...)
	t.Cleanup(func() {
		if err := f.DestroyAll(context.Background()); err != nil {
			t.Errorf("destroying singletons: %v", err)
		}
	})
	return f
}
