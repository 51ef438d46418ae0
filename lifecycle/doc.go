// Package lifecycle holds the state shared by every creation: the singleton
// cache with its early-reference protocol, the dependency graph used for
// ordered destruction, the custom scope extension point and the per-task
// creation context.
//
// A singleton moves from absent to in creation to finished. While it is in
// creation the engine may expose an early factory; a task that needs the
// singleton during its own creation gets the early reference instead of
// recursing. Prototypes never take part in that protocol; the creation
// context rejects a prototype that is already being built by the same task.
package lifecycle
