package di

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/typeinfo"
)

// RegistrationMode determines when a provided object is built.
type RegistrationMode int

const (
	Eager     RegistrationMode = iota // Built by PreInstantiateSingletons
	Lazy                              // Built on first lookup
	Singleton                         // Pre-created instance
	Prototype                         // Built on every lookup
)

func (m RegistrationMode) String() string {
	switch m {
	case Eager:
		return "eager"
	case Lazy:
		return "lazy"
	case Singleton:
		return "singleton"
	case Prototype:
		return "prototype"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// RegistrationInfo describes a registered object for introspection.
type RegistrationInfo struct {
	Key         string
	Mode        RegistrationMode
	Initialized bool
}

// RetryPolicy controls how often a failing constructor is re-invoked within
// one creation.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoffMs  int
	MaxBackoffMs      int
	BackoffMultiplier float64
}

// CircuitState is the state of a provider's circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreakerConfig configures when a provider stops calling its
// constructor after repeated failures.
type CircuitBreakerConfig struct {
	FailureThreshold  int
	RecoveryTimeoutMs int
}

// CircuitBreaker short-circuits creations of an object whose constructor
// keeps failing, so repeated lookups fail fast until the recovery timeout.
type CircuitBreaker struct {
	failureCount    int64
	state           CircuitState
	lastFailureTime time.Time
	config          *CircuitBreakerConfig
	mu              sync.Mutex
}

// ProvideOption customizes a provider registration.
type ProvideOption func(*provider)

type provider struct {
	name       string
	mode       RegistrationMode
	retry      *RetryPolicy
	breaker    *CircuitBreaker
	paramNames []string
	extra      []descriptor.Option
}

// WithMode selects when the object is built.
func WithMode(mode RegistrationMode) ProvideOption {
	return func(p *provider) { p.mode = mode }
}

// WithRetryPolicy retries the constructor with exponential backoff.
func WithRetryPolicy(policy *RetryPolicy) ProvideOption {
	return func(p *provider) { p.retry = policy }
}

// WithCircuitBreaker guards the constructor with a circuit breaker.
func WithCircuitBreaker(config *CircuitBreakerConfig) ProvideOption {
	return func(p *provider) { p.breaker = NewCircuitBreaker(config) }
}

// WithParamNames names the constructor parameters; a name lets a candidate
// with that bean name win when several match by type.
func WithParamNames(names ...string) ProvideOption {
	return func(p *provider) { p.paramNames = names }
}

// WithDescriptor adds descriptor options such as AsPrimary, WithQualifier or
// WithDestroyMethod to the generated descriptor.
func WithDescriptor(opts ...descriptor.Option) ProvideOption {
	return func(p *provider) { p.extra = append(p.extra, opts...) }
}

var contextType = reflect.TypeFor[context.Context]()

// Provide registers ctor under name as the producer of a T. Every parameter
// of ctor is resolved from f by type at creation time; a context.Context
// parameter receives the creation context. ctor may return T or (T, error).
func Provide[T any](f *factory.Factory, name string, ctor any, opts ...ProvideOption) error {
	p := &provider{name: name, mode: Eager, retry: noRetry()}
	for _, opt := range opts {
		opt(p)
	}
	r, err := typeinfo.NewRoutine(name, ctor, true, p.paramNames...)
	if err != nil {
		return errors.InvalidDescriptor(name, err.Error())
	}
	if r.IsVoid() {
		return errors.InvalidDescriptor(name, "constructor produces no value")
	}
	want := reflect.TypeFor[T]()
	if !r.Out.AssignableTo(want) {
		return errors.TypeMismatch(name, typeinfo.TypeName(want), typeinfo.TypeName(r.Out))
	}

	dopts := []descriptor.Option{
		descriptor.WithType(want),
		descriptor.WithSupplier(func(ctx context.Context) (any, error) {
			return p.invoke(ctx, f, r)
		}),
	}
	switch p.mode {
	case Lazy:
		dopts = append(dopts, descriptor.AsLazy())
	case Prototype:
		dopts = append(dopts, descriptor.AsPrototype())
	case Singleton:
		return errors.InvalidConfig("di: use Instance to register a pre-created object")
	}
	dopts = append(dopts, p.extra...)
	return f.Register(name, descriptor.New(dopts...))
}

// Instance registers a pre-created object under name.
func Instance(f *factory.Factory, name string, obj any) error {
	return f.RegisterSingleton(name, obj)
}

func (p *provider) invoke(ctx context.Context, f *factory.Factory, r *typeinfo.Routine) (any, error) {
	args := make([]reflect.Value, r.ParamCount())
	for i, pt := range r.Params {
		if pt == contextType {
			args[i] = reflect.ValueOf(&ctx).Elem()
			continue
		}
		dd := &factory.DependencyDescriptor{
			Type:     pt,
			Name:     r.ParamName(i),
			Required: true,
			Eager:    true,
			Point:    fmt.Sprintf("parameter %d of %s", i, r),
		}
		v, err := f.Resolve(ctx, dd, p.name)
		if err != nil {
			return nil, err
		}
		if !v.IsValid() {
			v = reflect.Zero(pt)
		}
		args[i] = v
	}
	return p.callWithRetry(ctx, f.Logger(), r, args)
}

func (p *provider) callWithRetry(ctx context.Context, log *logger.Logger, r *typeinfo.Routine, args []reflect.Value) (any, error) {
	if p.breaker != nil && p.breaker.IsOpen() {
		return nil, fmt.Errorf("circuit open for '%s'", p.name)
	}

	var lastErr error
	backoffMs := p.retry.InitialBackoffMs
	for attempt := 0; attempt < p.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			}
			backoffMs = int(float64(backoffMs) * p.retry.BackoffMultiplier)
			if backoffMs > p.retry.MaxBackoffMs {
				backoffMs = p.retry.MaxBackoffMs
			}
		}

		out, err := r.Call(reflect.Value{}, args)
		if err != nil {
			lastErr = err
			log.Debug("Constructor failed", map[string]interface{}{
				logger.FieldBean:  p.name,
				"attempt":         attempt + 1,
				logger.FieldError: err.Error(),
			})
			continue
		}
		if p.breaker != nil {
			p.breaker.RecordSuccess()
		}
		if attempt > 0 {
			log.Info("Constructor succeeded after retry", map[string]interface{}{
				logger.FieldBean: p.name,
				"attempts":       attempt + 1,
			})
		}
		if !out.IsValid() {
			return nil, nil
		}
		return out.Interface(), nil
	}

	if p.breaker != nil {
		p.breaker.RecordFailure()
	}
	if p.retry.MaxAttempts > 1 {
		return nil, fmt.Errorf("constructor of '%s' failed after %d attempts: %w", p.name, p.retry.MaxAttempts, lastErr)
	}
	return nil, lastErr
}

// Registrations lists every named object of f with its mode and whether it
// has been built.
func Registrations(f *factory.Factory) []RegistrationInfo {
	built := f.SingletonNames()
	manual := f.ManualSingletonNames()
	names := f.DescriptorNames()
	infos := make([]RegistrationInfo, 0, len(names)+len(manual))
	for _, name := range names {
		d, err := f.Descriptor(name)
		if err != nil {
			continue
		}
		info := RegistrationInfo{Key: name, Mode: Eager, Initialized: slices.Contains(built, name)}
		switch {
		case d.IsPrototype():
			info.Mode = Prototype
		case d.LazyInit:
			info.Mode = Lazy
		}
		infos = append(infos, info)
	}
	for _, name := range manual {
		infos = append(infos, RegistrationInfo{Key: name, Mode: Singleton, Initialized: true})
	}
	slices.SortFunc(infos, func(a, b RegistrationInfo) int {
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return infos
}

// Refresh drops the cached singleton and builds it again.
func Refresh(ctx context.Context, f *factory.Factory, name string) (any, error) {
	if err := f.DestroySingleton(ctx, name); err != nil {
		return nil, err
	}
	return f.GetBean(ctx, name)
}

// Close destroys every singleton of f, dependents first.
func Close(ctx context.Context, f *factory.Factory) error {
	return f.DestroyAll(ctx)
}

func noRetry() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 1, BackoffMultiplier: 1}
}

// DefaultRetryPolicy is a policy suited to constructors that dial remote
// services.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoffMs:  1000,
		MaxBackoffMs:      30000,
		BackoffMultiplier: 2.0,
	}
}

// DefaultCircuitBreakerConfig opens after five failures for one minute.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeoutMs: 60000,
	}
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{state: CircuitClosed, config: config}
}

// IsOpen reports whether calls are currently refused. An open breaker turns
// half-open once the recovery timeout has passed.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.lastFailureTime) > time.Duration(cb.config.RecoveryTimeoutMs)*time.Millisecond {
			cb.state = CircuitHalfOpen
			return false
		}
		return true
	}
	return false
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()
	if cb.state == CircuitHalfOpen || cb.failureCount >= int64(cb.config.FailureThreshold) {
		cb.state = CircuitOpen
	}
}
