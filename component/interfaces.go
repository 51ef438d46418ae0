package component

import "context"

// Component is a managed object with a running phase. Start is called once
// every eager singleton exists; Stop is called before the factory destroys
// the singletons.
type Component interface {
	// Start begins the component's work.
	Start(ctx context.Context) error

	// Stop gracefully ends the work and releases resources.
	Stop(ctx context.Context) error
}

// Description holds summary information for the startup display.
type Description struct {
	// Name is the human-readable display name. If empty, the bean name is used.
	Name string
	// Type categorizes the component: "server", "pool", "consumer" and so on.
	Type string
	// Details is a one-liner shown in the startup summary.
	// Examples: "localhost:5432 pool=25/5", ":8089 /beans /graph"
	Details string
	// Port is the primary port, 0 if not applicable.
	Port int
}

// Describable is optionally implemented by components that report what
// they are and how they are configured.
type Describable interface {
	Describe() Description
}

// Route holds a single HTTP route for the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider is optionally implemented by server components to report
// their registered HTTP routes.
type RouteProvider interface {
	Routes() []Route
}
