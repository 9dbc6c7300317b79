package ecs

import "fmt"

// EntityNotFoundError is raised when a mutation references a destroyed or
// never-allocated entity.
type EntityNotFoundError struct {
	Entity ID
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity not found: %v", e.Entity)
}

// InvalidComponentTypeError is raised when an id classifies as invalid, or
// a wildcard relation is used where a concrete component is required.
type InvalidComponentTypeError struct {
	ID     ID
	Reason string
}

func (e InvalidComponentTypeError) Error() string {
	return fmt.Sprintf("invalid component type %v: %s", e.ID, e.Reason)
}

// MissingComponentError is raised by Get when the entity lacks the
// requested component.
type MissingComponentError struct {
	Entity    ID
	Component ID
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("entity %v has no component %v", e.Entity, e.Component)
}

// IDSpaceExhaustedError is raised when the component id range overflows.
type IDSpaceExhaustedError struct {
	CMax ID
}

func (e IDSpaceExhaustedError) Error() string {
	return fmt.Sprintf("component id space exhausted (max %v)", e.CMax)
}

// CommandBufferOverflowError is raised when draining the command buffer
// exceeds the configured iteration ceiling, a diagnostic for a hook that
// enqueues new commands forever.
type CommandBufferOverflowError struct {
	Ceiling int
}

func (e CommandBufferOverflowError) Error() string {
	return fmt.Sprintf("command buffer drain exceeded %d iterations", e.Ceiling)
}

// QueryDisposedError is raised by any operation on a disposed Query.
type QueryDisposedError struct {
	Key string
}

func (e QueryDisposedError) Error() string {
	return fmt.Sprintf("query %q is disposed", e.Key)
}

// ReentrantSyncError is raised when Sync is invoked from inside a query
// iteration callback, which the scheduling model forbids.
type ReentrantSyncError struct{}

func (e ReentrantSyncError) Error() string {
	return "sync called re-entrantly from a query iteration callback"
}

// SnapshotFormatError is raised by NewWorldFromSnapshot on a snapshot that
// is structurally malformed or from an unsupported version.
type SnapshotFormatError struct {
	Reason string
}

func (e SnapshotFormatError) Error() string {
	return "malformed snapshot: " + e.Reason
}
