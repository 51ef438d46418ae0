package factory

import (
	"context"
	"reflect"
)

// FactoryBeanPrefix dereferences a FactoryBean: "&name" returns the factory
// object itself rather than the object it produces.
const FactoryBeanPrefix = "&"

// ObjectTypeAttribute may hold the reflect.Type a FactoryBean descriptor
// produces, so type matching does not need to build the factory.
const ObjectTypeAttribute = "factory.objectType"

// FactoryBean is a managed object that produces the object exposed under
// its name.
type FactoryBean interface {
	Object(ctx context.Context) (any, error)
	// ObjectType returns the produced type, or nil if not known in advance.
	ObjectType() reflect.Type
	// IsSingleton reports whether Object always returns the same instance;
	// such products are cached.
	IsSingleton() bool
}

// SmartFactoryBean lets a FactoryBean ask for its product to be built during
// pre-instantiation.
type SmartFactoryBean interface {
	FactoryBean
	IsEagerInit() bool
}

// NameAware objects receive the name they are managed under.
type NameAware interface {
	SetBeanName(name string)
}

// FactoryAware objects receive the factory that built them.
type FactoryAware interface {
	SetBeanFactory(f *Factory)
}

// Initializer objects are called once all properties are set.
type Initializer interface {
	AfterPropertiesSet(ctx context.Context) error
}

// Disposer objects are called when their singleton or scope is destroyed.
type Disposer interface {
	Destroy(ctx context.Context) error
}

// SmartInitializer singletons are called once all non-lazy singletons have
// been pre-instantiated.
type SmartInitializer interface {
	SingletonsReady(ctx context.Context) error
}

// MethodReplacer reimplements a method declared as a replaced-method
// override.
type MethodReplacer interface {
	Reimplement(ctx context.Context, obj any, method string, args []any) (any, error)
}

// ValueProducer is a lazily computed value in the resolvable dependency table.
type ValueProducer func(ctx context.Context) (any, error)

// CreationObserver is notified around every managed-object creation. The
// context returned by BeforeCreate is used for the creation.
type CreationObserver interface {
	BeforeCreate(ctx context.Context, name, scope string) context.Context
	AfterCreate(ctx context.Context, name string, err error)
}
