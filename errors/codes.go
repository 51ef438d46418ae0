package errors

import "net/http"

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry errors
const (
	// ErrCodeMissingDescriptor indicates no descriptor is registered under the name.
	ErrCodeMissingDescriptor ErrorCode = "MISSING_DESCRIPTOR"
	// ErrCodeAbstractDescriptor indicates an attempt to instantiate a non-concrete blueprint.
	ErrCodeAbstractDescriptor ErrorCode = "ABSTRACT_DESCRIPTOR"
	// ErrCodeCyclicParentage indicates a parent chain that loops back on itself.
	ErrCodeCyclicParentage ErrorCode = "CYCLIC_PARENTAGE"
	// ErrCodeMissingParent indicates a parent chain naming an unknown descriptor.
	ErrCodeMissingParent ErrorCode = "MISSING_PARENT"
	// ErrCodeDescriptorOverride indicates a re-registration while overriding is disabled.
	ErrCodeDescriptorOverride ErrorCode = "DESCRIPTOR_OVERRIDE"
	// ErrCodeInvalidDescriptor indicates a descriptor that cannot be used as configured.
	ErrCodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"
)

// Lifecycle errors
const (
	// ErrCodeAlreadyInCreation indicates a circular prototype reference or an invalid reentry.
	ErrCodeAlreadyInCreation ErrorCode = "ALREADY_IN_CREATION"
	// ErrCodeCreationNotAllowed indicates a creation attempt while the cache is destroying.
	ErrCodeCreationNotAllowed ErrorCode = "CREATION_NOT_ALLOWED"
	// ErrCodeCircularDependsOn indicates a depends-on declaration that loops.
	ErrCodeCircularDependsOn ErrorCode = "CIRCULAR_DEPENDS_ON"
	// ErrCodeMissingScope indicates a descriptor naming a scope nobody registered.
	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"
	// ErrCodeRawInjectionDespiteWrapping indicates dependents hold the raw object of a wrapped singleton.
	ErrCodeRawInjectionDespiteWrapping ErrorCode = "RAW_INJECTION_DESPITE_WRAPPING"
)

// Resolution errors
const (
	// ErrCodeAmbiguousPrimary indicates more than one primary candidate at the same locality.
	ErrCodeAmbiguousPrimary ErrorCode = "AMBIGUOUS_PRIMARY"
	// ErrCodeNoUniqueCandidate indicates several candidates and nothing to pick one.
	ErrCodeNoUniqueCandidate ErrorCode = "NO_UNIQUE_CANDIDATE"
	// ErrCodeNoMatchingCandidate indicates no candidate for a required injection point.
	ErrCodeNoMatchingCandidate ErrorCode = "NO_MATCHING_CANDIDATE"
	// ErrCodeTypeMismatch indicates an object that is not of the required type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
)

// Construction errors
const (
	// ErrCodeAmbiguousFactoryMethod indicates equally weighted factory routines in strict mode.
	ErrCodeAmbiguousFactoryMethod ErrorCode = "AMBIGUOUS_FACTORY_METHOD"
	// ErrCodeNoMatchingConstructor indicates no constructor, or an ambiguous one in strict mode.
	ErrCodeNoMatchingConstructor ErrorCode = "NO_MATCHING_CONSTRUCTOR"
	// ErrCodeUnsatisfiedDependency indicates an injection point or checked property left unsatisfied.
	ErrCodeUnsatisfiedDependency ErrorCode = "UNSATISFIED_DEPENDENCY"
	// ErrCodeConstructionFailed wraps any other failure during instantiation, population or init.
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
)

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates settings or definitions that failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

var httpStatusByCode = map[ErrorCode]int{
	ErrCodeMissingDescriptor:  http.StatusNotFound,
	ErrCodeMissingParent:      http.StatusNotFound,
	ErrCodeMissingScope:       http.StatusNotFound,
	ErrCodeInvalidDescriptor:  http.StatusBadRequest,
	ErrCodeInvalidConfig:      http.StatusBadRequest,
	ErrCodeAbstractDescriptor: http.StatusUnprocessableEntity,
	ErrCodeDescriptorOverride: http.StatusConflict,
	ErrCodeAlreadyInCreation:  http.StatusConflict,
	ErrCodeCreationNotAllowed: http.StatusServiceUnavailable,
}

// HTTPStatusForCode returns the HTTP status used when the code is reported over HTTP.
func HTTPStatusForCode(code ErrorCode) int {
	if s, ok := httpStatusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
