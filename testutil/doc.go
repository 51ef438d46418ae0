// Package testutil provides helpers for tests that wire objects through a
// factory.
//
// NewFactory returns a factory that logs through t.Log and destroys its
// singletons when the test ends. Recorder and Component make lifecycle
// order observable:
//
//	rec := &testutil.Recorder{}
//	f := testutil.NewFactory(t)
//	di.Provide[*testutil.Component](f, "db", func() *testutil.Component {
//	    return testutil.NewComponent("db", rec)
//	})
//	// ... start and stop through a component.Registry
//	if got := rec.String(); got != "start:db stop:db" { ... }
package testutil
