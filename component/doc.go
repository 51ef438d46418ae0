// Package component runs the Start/Stop phase of managed objects.
//
// After pre-instantiation, the singletons implementing Component are
// discovered from the factory and started so that every component starts
// after the components it depends on. Shutdown stops them in reverse order
// before the factory destroys its singletons.
//
//	reg := component.NewRegistry()
//	if _, err := reg.Discover(ctx, f); err != nil {
//	    return err
//	}
//	if err := reg.StartAll(ctx); err != nil {
//	    return err
//	}
//	defer reg.StopAll(context.Background())
package component
