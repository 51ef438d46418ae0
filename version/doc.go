// Package version reports the build of the running binary.
//
// The release version is injected at link time:
//
//	go build -ldflags "-X github.com/kbukum/beankit/version.Version=1.4.0"
//
// Commit and build time fall back to the VCS stamps the Go toolchain records.
package version
