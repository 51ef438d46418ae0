package registry

import (
	"strconv"

	"github.com/kbukum/beankit/descriptor"
)

// GeneratedNameSeparator separates the base name from the counter.
const GeneratedNameSeparator = "#"

// NameGenerator derives a name for a descriptor registered without one.
type NameGenerator interface {
	Generate(d *descriptor.Descriptor, r *Registry) string
}

// DefaultNameGenerator names descriptors "<type>#<n>" with the first unused n.
// Descriptors without a type use their parent name with a "$child" suffix,
// or their factory object name with "$created".
type DefaultNameGenerator struct{}

// Generate implements NameGenerator.
func (DefaultNameGenerator) Generate(d *descriptor.Descriptor, r *Registry) string {
	base := d.TypeLabel()
	if base == "" {
		switch {
		case d.Parent != "":
			base = d.Parent + "$child"
		case d.FactoryBean != "":
			base = d.FactoryBean + "$created"
		default:
			base = "bean"
		}
	}
	for n := 0; ; n++ {
		name := base + GeneratedNameSeparator + strconv.Itoa(n)
		if !r.Contains(name) && !r.IsAlias(name) {
			return name
		}
	}
}

// NameGeneratorFunc adapts a function to NameGenerator.
type NameGeneratorFunc func(d *descriptor.Descriptor, r *Registry) string

// Generate implements NameGenerator.
func (f NameGeneratorFunc) Generate(d *descriptor.Descriptor, r *Registry) string { return f(d, r) }
