package descriptor

import (
	"reflect"
	"sync"

	"github.com/kbukum/beankit/typeinfo"
)

// Resolution is the cached outcome of constructor or factory routine
// selection for a resolved descriptor.
type Resolution struct {
	Routine *typeinfo.Routine
	// FactoryType is the type the factory routine was looked up on.
	FactoryType reflect.Type
	// ArgsResolved reports that Args can be reused as they are. Otherwise
	// Prepared holds the configured values that must be resolved again on
	// every creation.
	ArgsResolved bool
	Args         []reflect.Value
	Prepared     []any
}

// state is per resolved descriptor and never copied by Clone.
type state struct {
	mu            sync.Mutex
	resolution    *Resolution
	postProcessed bool
	targetType    reflect.Type
	factoryBean   *bool
	shortcut      *bool
}

func (d *Descriptor) st() *state {
	if d.state == nil {
		d.state = &state{}
	}
	return d.state
}

// Prepare attaches the resolution cache. The registry calls it before a
// resolved descriptor becomes visible to other goroutines.
func (d *Descriptor) Prepare() *Descriptor {
	d.st()
	return d
}

// CachedResolution returns the cached selection outcome, if any.
func (d *Descriptor) CachedResolution() (Resolution, bool) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolution == nil {
		return Resolution{}, false
	}
	return *s.resolution, true
}

// CacheResolution stores a selection outcome.
func (d *Descriptor) CacheResolution(r Resolution) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = &r
}

// MarkPostProcessed reports true exactly once per resolved descriptor, so
// merged-descriptor hooks run a single time.
func (d *Descriptor) MarkPostProcessed() bool {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postProcessed {
		return false
	}
	s.postProcessed = true
	return true
}

// TargetType returns the type predicted or produced for the descriptor.
func (d *Descriptor) TargetType() reflect.Type {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetType
}

// SetTargetType records the type predicted or produced for the descriptor.
func (d *Descriptor) SetTargetType(t reflect.Type) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetType = t
}

// IsFactoryBeanCached returns the cached answer to "does this produce a
// FactoryBean", if known.
func (d *Descriptor) IsFactoryBeanCached() (isFactory, known bool) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.factoryBean == nil {
		return false, false
	}
	return *s.factoryBean, true
}

// CacheIsFactoryBean records whether the descriptor produces a FactoryBean.
func (d *Descriptor) CacheIsFactoryBean(v bool) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factoryBean = &v
}

// ShortcutResolved returns whether before-instantiation hooks may apply to
// the descriptor, once decided.
func (d *Descriptor) ShortcutResolved() (apply, known bool) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shortcut == nil {
		return false, false
	}
	return *s.shortcut, true
}

// SetShortcutResolved records whether before-instantiation hooks apply.
func (d *Descriptor) SetShortcutResolved(v bool) {
	s := d.st()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortcut = &v
}
