package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/beankit/component"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/observability"
)

// ManagedObjectInfo describes one managed object in the summary.
type ManagedObjectInfo struct {
	Name         string
	Scope        string
	Status       string // "initialized", "lazy", "prototype", "abstract"
	Dependencies []string
}

// Summary prints the application startup overview.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary printer. A nil writer prints to stdout.
func NewSummary(serviceName, version string, out io.Writer) *Summary {
	if out == nil {
		out = os.Stdout
	}
	return &Summary{serviceName: serviceName, version: version, out: out}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// ManagedObjects collects the descriptors of f with their status and the
// dependencies recorded so far.
func ManagedObjects(f *factory.Factory) []ManagedObjectInfo {
	built := f.SingletonNames()
	graph := f.Graph()
	var out []ManagedObjectInfo
	for _, name := range f.DescriptorNames() {
		info := ManagedObjectInfo{Name: name, Dependencies: graph.Dependencies(name)}
		d, err := f.Descriptor(name)
		switch {
		case err != nil:
			info.Status = "error"
		case d.Abstract:
			info.Status = "abstract"
		case d.IsPrototype():
			info.Status = "prototype"
		case slices.Contains(built, name):
			info.Status = "initialized"
		default:
			info.Status = "lazy"
		}
		if err == nil {
			info.Scope = d.Scope
		}
		out = append(out, info)
	}
	return out
}

// Display prints the summary: components with their descriptions, managed
// objects with their dependencies, HTTP routes and live health.
func (s *Summary) Display(ctx context.Context, f *factory.Factory, registry *component.Registry, health *observability.ServiceHealth) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var routes []component.Route
	if registry != nil {
		names := registry.Names()
		if len(names) > 0 {
			fmt.Fprintf(w, "📦 Components\n")
			for i, name := range names {
				c := registry.Get(name)
				line := name
				if d, ok := c.(component.Describable); ok {
					desc := d.Describe()
					if desc.Name != "" {
						line = desc.Name
					}
					if desc.Details != "" {
						line += ": " + desc.Details
					}
				}
				icon := "✅"
				if !registry.Started(name) {
					icon = "⏸️"
				}
				fmt.Fprintf(w, "   %s %s %s\n", treePrefix(i, len(names)), icon, line)
				if rp, ok := c.(component.RouteProvider); ok {
					routes = append(routes, rp.Routes()...)
				}
			}
			fmt.Fprintf(w, "\n")
		}
	}

	if f != nil {
		objects := ManagedObjects(f)
		if len(objects) > 0 {
			fmt.Fprintf(w, "💼 Managed Objects (%d)\n", len(objects))
			for i, o := range objects {
				last := i == len(objects)-1
				fmt.Fprintf(w, "   %s %s %s (%s)\n", treePrefix(i, len(objects)), statusIcon(o.Status), o.Name, o.Status)
				for j, dep := range o.Dependencies {
					depPrefix := "│   ├──"
					if last {
						depPrefix = "    ├──"
					}
					if j == len(o.Dependencies)-1 {
						depPrefix = strings.Replace(depPrefix, "├──", "└──", 1)
					}
					fmt.Fprintf(w, "   %s 🔗 %s\n", depPrefix, dep)
				}
			}
			fmt.Fprintf(w, "\n")
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s\n", treePrefix(i, len(routes)), r.Method, r.Path)
		}
		fmt.Fprintf(w, "\n")
	}

	if health != nil && len(health.Components) > 0 {
		fmt.Fprintf(w, "🏥 Health Check\n")
		for i, h := range health.Components {
			msg := ""
			if h.Message != "" {
				msg = " (" + h.Message + ")"
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health.Components)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
		}
		fmt.Fprintf(w, "\n")
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(status string) string {
	switch status {
	case "initialized":
		return "✅"
	case "lazy":
		return "⚡"
	case "prototype":
		return "♻️"
	case "abstract":
		return "📐"
	default:
		return "❌"
	}
}

func healthStatusIcon(status observability.HealthStatus) string {
	switch status {
	case observability.HealthStatusUp:
		return "✅"
	case observability.HealthStatusDegraded:
		return "⚠️"
	case observability.HealthStatusDown:
		return "❌"
	default:
		return "❓"
	}
}
