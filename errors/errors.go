// Package errors provides the error taxonomy of the object-graph engine.
// Every failure carries a machine-readable code and, where one applies, the
// name of the managed component it concerns. Nested creation failures keep
// their cause so the chain of component names can be reported.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// BeanError is the unified error type.
type BeanError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Bean is the name of the component the error concerns, if any.
	Bean string `json:"bean,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *BeanError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Bean != "" {
		fmt.Fprintf(&b, " [%s]", e.Bean)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *BeanError) Unwrap() error { return e.Cause }

// Is reports whether target is a BeanError with the same code. Sentinels
// such as ErrNoUniqueCandidate therefore match any error of that code.
func (e *BeanError) Is(target error) bool {
	t, ok := target.(*BeanError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *BeanError) WithCause(cause error) *BeanError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *BeanError) WithDetail(key string, value any) *BeanError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the status used when the error is reported over HTTP.
func (e *BeanError) HTTPStatus() int {
	return HTTPStatusForCode(e.Code)
}

// New creates a new BeanError.
func New(code ErrorCode, bean, message string) *BeanError {
	return &BeanError{Code: code, Bean: bean, Message: message}
}

// Newf creates a new BeanError with a formatted message.
func Newf(code ErrorCode, bean, format string, args ...any) *BeanError {
	return New(code, bean, fmt.Sprintf(format, args...))
}

// Sentinels for errors.Is matching by code.
var (
	ErrMissingDescriptor           = &BeanError{Code: ErrCodeMissingDescriptor}
	ErrAbstractDescriptor          = &BeanError{Code: ErrCodeAbstractDescriptor}
	ErrCyclicParentage             = &BeanError{Code: ErrCodeCyclicParentage}
	ErrMissingParent               = &BeanError{Code: ErrCodeMissingParent}
	ErrDescriptorOverride          = &BeanError{Code: ErrCodeDescriptorOverride}
	ErrInvalidDescriptor           = &BeanError{Code: ErrCodeInvalidDescriptor}
	ErrAlreadyInCreation           = &BeanError{Code: ErrCodeAlreadyInCreation}
	ErrCreationNotAllowed          = &BeanError{Code: ErrCodeCreationNotAllowed}
	ErrCircularDependsOn           = &BeanError{Code: ErrCodeCircularDependsOn}
	ErrMissingScope                = &BeanError{Code: ErrCodeMissingScope}
	ErrRawInjectionDespiteWrapping = &BeanError{Code: ErrCodeRawInjectionDespiteWrapping}
	ErrAmbiguousPrimary            = &BeanError{Code: ErrCodeAmbiguousPrimary}
	ErrNoUniqueCandidate           = &BeanError{Code: ErrCodeNoUniqueCandidate}
	ErrNoMatchingCandidate         = &BeanError{Code: ErrCodeNoMatchingCandidate}
	ErrTypeMismatch                = &BeanError{Code: ErrCodeTypeMismatch}
	ErrAmbiguousFactoryMethod      = &BeanError{Code: ErrCodeAmbiguousFactoryMethod}
	ErrNoMatchingConstructor       = &BeanError{Code: ErrCodeNoMatchingConstructor}
	ErrUnsatisfiedDependency       = &BeanError{Code: ErrCodeUnsatisfiedDependency}
	ErrConstructionFailed          = &BeanError{Code: ErrCodeConstructionFailed}
	ErrInvalidConfig               = &BeanError{Code: ErrCodeInvalidConfig}
)

// --- Common Error Constructors ---

// MissingDescriptor creates an error for an unknown component name.
func MissingDescriptor(name string) *BeanError {
	return Newf(ErrCodeMissingDescriptor, name, "no descriptor named '%s' is registered", name)
}

// AbstractDescriptor creates an error for an attempt to instantiate an abstract blueprint.
func AbstractDescriptor(name string) *BeanError {
	return New(ErrCodeAbstractDescriptor, name, "descriptor is abstract and cannot be instantiated")
}

// CyclicParentage creates an error for a parent chain that loops.
func CyclicParentage(name string, chain []string) *BeanError {
	return Newf(ErrCodeCyclicParentage, name, "parent chain does not terminate: %s", strings.Join(chain, " -> ")).
		WithDetail("chain", chain)
}

// MissingParent creates an error for a parent chain naming an unknown descriptor.
func MissingParent(name, parent string) *BeanError {
	return Newf(ErrCodeMissingParent, name, "parent descriptor '%s' is not registered", parent).
		WithDetail("parent", parent)
}

// DescriptorOverride creates an error for a re-registration with overriding disabled.
func DescriptorOverride(name string) *BeanError {
	return New(ErrCodeDescriptorOverride, name, "a descriptor with this name is already registered and overriding is disabled")
}

// InvalidDescriptor creates an error for a descriptor that cannot be used.
func InvalidDescriptor(name, reason string) *BeanError {
	return New(ErrCodeInvalidDescriptor, name, reason)
}

// AlreadyInCreation creates an error for a circular reference that cannot be resolved.
func AlreadyInCreation(name string) *BeanError {
	return New(ErrCodeAlreadyInCreation, name, "requested component is currently in creation: is there an unresolvable circular reference?")
}

// CreationNotAllowed creates an error for a creation attempt during destruction.
func CreationNotAllowed(name string) *BeanError {
	return New(ErrCodeCreationNotAllowed, name, "singleton creation not allowed while singletons of this factory are being destroyed")
}

// CircularDependsOn creates an error for looping depends-on declarations.
func CircularDependsOn(name, dependsOn string) *BeanError {
	return Newf(ErrCodeCircularDependsOn, name, "circular depends-on relationship between '%s' and '%s'", name, dependsOn)
}

// MissingScope creates an error for an unregistered scope name.
func MissingScope(name, scope string) *BeanError {
	return Newf(ErrCodeMissingScope, name, "no scope registered for scope name '%s'", scope).
		WithDetail("scope", scope)
}

// RawInjectionDespiteWrapping creates an error for dependents holding a raw reference.
func RawInjectionDespiteWrapping(name string, dependents []string) *BeanError {
	return Newf(ErrCodeRawInjectionDespiteWrapping, name,
		"component has been injected into other components [%s] in its raw version as part of a circular reference, but has eventually been wrapped; those components do not use the final version",
		strings.Join(dependents, ", ")).WithDetail("dependents", dependents)
}

// AmbiguousPrimary creates an error for more than one primary candidate.
func AmbiguousPrimary(requiredType string, candidates []string) *BeanError {
	return Newf(ErrCodeAmbiguousPrimary, "", "more than one 'primary' candidate found among %v for type %s", candidates, requiredType).
		WithDetail("candidates", candidates)
}

// NoUniqueCandidate creates an error listing every match that could not be told apart.
func NoUniqueCandidate(requiredType string, candidates []string) *BeanError {
	return Newf(ErrCodeNoUniqueCandidate, "", "expected single matching candidate of type %s but found %d: %s",
		requiredType, len(candidates), strings.Join(candidates, ",")).WithDetail("candidates", candidates)
}

// NoMatchingCandidate creates an error for a required injection point with no candidate.
func NoMatchingCandidate(requiredType, injectionPoint string) *BeanError {
	e := Newf(ErrCodeNoMatchingCandidate, "", "no qualifying candidate of type %s available", requiredType)
	if injectionPoint != "" {
		e.Message += " for injection point '" + injectionPoint + "'"
	}
	return e
}

// TypeMismatch creates an error for an object that is not of the required type.
func TypeMismatch(name, required, actual string) *BeanError {
	return Newf(ErrCodeTypeMismatch, name, "component is expected to be of type %s but was actually of type %s", required, actual)
}

// AmbiguousFactoryMethod creates an error for equally weighted factory routines.
func AmbiguousFactoryMethod(name, method string, candidates []string) *BeanError {
	return Newf(ErrCodeAmbiguousFactoryMethod, name, "ambiguous factory routine matches found for '%s': %s", method, strings.Join(candidates, "; ")).
		WithDetail("candidates", candidates)
}

// NoMatchingConstructor creates an error for a failed constructor selection.
func NoMatchingConstructor(name, reason string) *BeanError {
	return New(ErrCodeNoMatchingConstructor, name, reason)
}

// UnsatisfiedDependency creates an error for an unsatisfied injection point or property.
func UnsatisfiedDependency(name, injectionPoint, reason string) *BeanError {
	e := Newf(ErrCodeUnsatisfiedDependency, name, "unsatisfied dependency expressed through '%s': %s", injectionPoint, reason)
	return e.WithDetail("injection_point", injectionPoint)
}

// ConstructionFailed wraps any other failure during instantiation, population or initialization.
func ConstructionFailed(name, phase string, cause error) *BeanError {
	return Newf(ErrCodeConstructionFailed, name, "error creating component during %s", phase).
		WithDetail("phase", phase).WithCause(cause)
}

// InvalidConfig creates an error for settings or definitions that failed validation.
func InvalidConfig(message string) *BeanError {
	return New(ErrCodeInvalidConfig, "", message)
}

// IsBeanError checks if an error is a BeanError.
func IsBeanError(err error) bool {
	var be *BeanError
	return stderrors.As(err, &be)
}

// AsBeanError converts an error to a BeanError if possible.
func AsBeanError(err error) (*BeanError, bool) {
	var be *BeanError
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// HasCode reports whether any error in the chain carries the code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &BeanError{Code: code})
}

// Chain returns the component names along the error chain, outermost first.
// Consecutive duplicates are collapsed.
func Chain(err error) []string {
	var names []string
	for err != nil {
		if be, ok := err.(*BeanError); ok && be.Bean != "" {
			if len(names) == 0 || names[len(names)-1] != be.Bean {
				names = append(names, be.Bean)
			}
		}
		err = stderrors.Unwrap(err)
	}
	return names
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
