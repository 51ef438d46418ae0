// Package factory builds and wires managed objects from descriptors.
//
// A Factory owns a descriptor registry, a singleton cache and a set of
// hooks. GetBean looks an object up by name and builds it on first use:
// the type is resolved, an instantiation route is chosen (supplier, factory
// routine, constructor selected by weighted argument matching, or the
// zero-value constructor), properties are populated and init callbacks run.
// Dependencies found along the way are resolved recursively through the
// same factory, with circular references between singletons broken by
// early exposure of the raw instance.
//
// # Registration
//
//	f := factory.New(factory.WithLogger(log))
//	f.Loader().Register(typeinfo.MustDefine[*Service](
//	    typeinfo.Constructor(NewService, "repo"),
//	))
//	f.Register("repo", descriptor.For[*Repo]())
//	f.Register("service", descriptor.For[*Service]())
//
// # Resolution
//
//	svc, err := f.GetBean(ctx, "service")
//	repo, err := f.GetBeanByType(ctx, reflect.TypeFor[*Repo]())
//
// Code running inside a creation (constructors, init methods, FactoryBeans,
// hooks) must pass on the context it received when calling back into the
// factory; the context tells the factory which creation lock the task holds.
package factory
