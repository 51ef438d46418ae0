package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/beankit/observability"
)

// Component is a fake lifecycle component. It records "start:<name>",
// "stop:<name>" and "close:<name>" on its recorder and reports a settable
// health status.
type Component struct {
	Name     string
	StartErr error
	StopErr  error

	rec     *Recorder
	mu      sync.Mutex
	running bool
	status  observability.HealthStatus
	message string
}

// NewComponent creates a healthy component recording to rec. A nil rec
// records nothing.
func NewComponent(name string, rec *Recorder) *Component {
	if rec == nil {
		rec = &Recorder{}
	}
	return &Component{Name: name, rec: rec, status: observability.HealthStatusUp}
}

func (c *Component) Start(context.Context) error {
	c.rec.Add("start:" + c.Name)
	if c.StartErr != nil {
		return c.StartErr
	}
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.rec.Add("stop:" + c.Name)
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return c.StopErr
}

// Close lets the factory destroy the component with its singletons.
func (c *Component) Close() error {
	c.rec.Add("close:" + c.Name)
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (c *Component) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetHealth changes the status reported by CheckHealth.
func (c *Component) SetHealth(status observability.HealthStatus, message string) {
	c.mu.Lock()
	c.status, c.message = status, message
	c.mu.Unlock()
}

func (c *Component) CheckHealth(context.Context) observability.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return observability.Health{Name: c.Name, Status: c.status, Message: c.message}
}
