package lifecycle

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ObjectFactory creates the object a scope should hold under a name.
type ObjectFactory func(ctx context.Context) (any, error)

// Scope is a custom sharing policy. It mirrors the singleton contract
// without early references: circular references between scoped objects
// are not resolved.
type Scope interface {
	// Get returns the object held under name, creating it with create on a miss.
	Get(ctx context.Context, name string, create ObjectFactory) (any, error)
	// Remove drops the object held under name and returns it.
	Remove(name string) (any, bool)
	// RegisterDestructionCallback runs cb when the scope destroys name.
	RegisterDestructionCallback(name string, cb func())
	// ConversationID identifies the current scope instance, or "".
	ConversationID() string
}

// MapScope is a Scope backed by a map. Each instance is one conversation;
// Close ends it.
type MapScope struct {
	id string

	mu        sync.Mutex
	objects   map[string]any
	callbacks map[string]func()
	creating  map[string]*sync.Mutex
	order     []string
}

// NewMapScope creates an empty scope with a fresh conversation id.
func NewMapScope() *MapScope {
	return &MapScope{
		id:        uuid.NewString(),
		objects:   make(map[string]any),
		callbacks: make(map[string]func()),
		creating:  make(map[string]*sync.Mutex),
	}
}

// Get implements Scope. Creation is serialized per name, so concurrent
// misses build the object once and share it.
func (s *MapScope) Get(ctx context.Context, name string, create ObjectFactory) (any, error) {
	s.mu.Lock()
	if obj, ok := s.objects[name]; ok {
		s.mu.Unlock()
		return obj, nil
	}
	lock, ok := s.creating[name]
	if !ok {
		lock = &sync.Mutex{}
		s.creating[name] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if obj, ok := s.objects[name]; ok {
		s.mu.Unlock()
		return obj, nil
	}
	s.mu.Unlock()

	obj, err := create(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = obj
	s.order = append(s.order, name)
	return obj, nil
}

// Remove implements Scope.
func (s *MapScope) Remove(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, false
	}
	delete(s.objects, name)
	delete(s.callbacks, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return obj, true
}

// RegisterDestructionCallback implements Scope.
func (s *MapScope) RegisterDestructionCallback(name string, cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[name] = cb
}

// ConversationID implements Scope.
func (s *MapScope) ConversationID() string { return s.id }

// Len returns the number of held objects.
func (s *MapScope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Close runs the destruction callbacks of all held objects, newest first,
// and empties the scope.
func (s *MapScope) Close() {
	s.mu.Lock()
	order := slices.Clone(s.order)
	callbacks := s.callbacks
	s.objects = make(map[string]any)
	s.callbacks = make(map[string]func())
	s.order = nil
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if cb, ok := callbacks[order[i]]; ok {
			cb()
		}
	}
}
