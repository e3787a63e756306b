// Package common defines shared constants, sentinel errors and typed errors
// used across the core services. Callers should use errors.Is for sentinel
// values and errors.As for the typed variants.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrorRemoteUnreachable marks a remote instance that could not be
	// contacted. Preview degrades on it instead of failing.
	ErrorRemoteUnreachable = errors.New("remote instance unreachable")

	// ErrorBackupExpired marks a rollback attempt against a backup that has
	// already expired or been pruned.
	ErrorBackupExpired = errors.New("backup expired or pruned")
)

// CorruptDataError reports stored configuration that failed to parse.
// It is fatal for the calling operation; a parse failure must never be
// interpreted as an empty configuration.
type CorruptDataError struct {
	TemplateID string
	Err        error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt config data for template %s: %v", e.TemplateID, e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// NotFoundError identifies the missing entity kind and id. It wraps
// ErrorNotFound so errors.Is(err, ErrorNotFound) still matches.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, ErrorNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrorNotFound }

// ServiceMismatchError reports a template deployed against an instance of a
// different service type.
type ServiceMismatchError struct {
	TemplateService string
	InstanceService string
}

func (e *ServiceMismatchError) Error() string {
	return fmt.Sprintf("service type mismatch: template is %s, instance is %s",
		e.TemplateService, e.InstanceService)
}

// ConcurrencyError reports a deployment rejected because another one is
// already in flight for the same instance.
type ConcurrencyError struct {
	InstanceID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("deployment already active for instance %s", e.InstanceID)
}
