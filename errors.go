package datagraph

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors.
var (
	// ErrConfig is matched by every ConfigError.
	ErrConfig = errors.New("datagraph: invalid configuration")

	// ErrInaccessiblePath is matched by every InaccessiblePathError.
	ErrInaccessiblePath = errors.New("datagraph: inaccessible path")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("datagraph: record not found")
)

// ConfigError is returned when a Node, Linkage, Graph or schema is built from
// an invalid configuration. It is raised at construction time only and is
// never worth retrying.
type ConfigError struct {
	msg string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return "datagraph: config: " + e.msg
}

// Is reports whether the target error matches ConfigError.
// This allows errors.Is(configErr, ErrConfig) to return true.
func (e *ConfigError) Is(err error) bool {
	return err == ErrConfig
}

// NewConfigError returns a new ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// InaccessiblePathError is returned by the graph validators when a request
// addresses paths outside of the allowed subset. Paths holds exactly the
// offending paths, in request order.
type InaccessiblePathError struct {
	Paths []string
}

// Error returns the error string.
func (e *InaccessiblePathError) Error() string {
	return fmt.Sprintf("datagraph: inaccessible: [%s]", strings.Join(e.Paths, ", "))
}

// Is reports whether the target error matches InaccessiblePathError.
func (e *InaccessiblePathError) Is(err error) bool {
	return err == ErrInaccessiblePath
}

// NewInaccessiblePathError returns a new InaccessiblePathError.
func NewInaccessiblePathError(paths []string) *InaccessiblePathError {
	return &InaccessiblePathError{Paths: paths}
}

// IsInaccessiblePath returns true if the error is an InaccessiblePathError.
func IsInaccessiblePath(err error) bool {
	if err == nil {
		return false
	}
	var e *InaccessiblePathError
	return errors.As(err, &e)
}

// InvalidKeyError is returned when an attribute payload contains a key that
// is not a simple name.
type InvalidKeyError struct {
	Key  string // The offending key, formatted with %v.
	Path string // Prefix under which the key was found, empty at the top level.
}

// Error returns the error string.
func (e *InvalidKeyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("datagraph: unexpected attribute key %q under %q", e.Key, e.Path)
	}
	return fmt.Sprintf("datagraph: unexpected attribute key %q", e.Key)
}

// IsInvalidKey returns true if the error is an InvalidKeyError.
func IsInvalidKey(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidKeyError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	key   []any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if len(e.key) > 0 {
		return fmt.Sprintf("datagraph: %s not found (key=%v)", e.label, e.key)
	}
	return fmt.Sprintf("datagraph: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// Key returns the key that was searched for, if available.
func (e *NotFoundError) Key() []any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError for the given entity type and key.
func NewNotFoundError(label string, key ...any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotLoadedError represents an error when attempting to read an association
// that was never linked.
type NotLoadedError struct {
	edge string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("datagraph: association %q was not loaded", e.edge)
}

// NewNotLoadedError returns a new NotLoadedError for the given association name.
func NewNotLoadedError(edge string) *NotLoadedError {
	return &NotLoadedError{edge: edge}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "datagraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("datagraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As see each of them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "find", "count", "link")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("datagraph: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("datagraph: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Subset string // Subset the viewer was bound to
	Op     string // Operation (read or write)
	Err    error  // Decision returned by the policy
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	if e.Subset != "" {
		return fmt.Sprintf("datagraph: privacy denied %s on %s: %v", e.Op, e.Subset, e.Err)
	}
	return fmt.Sprintf("datagraph: privacy denied %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// NewPrivacyError returns a new PrivacyError.
func NewPrivacyError(subset, op string, err error) *PrivacyError {
	return &PrivacyError{Subset: subset, Op: op, Err: err}
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	if err == nil {
		return false
	}
	var e *PrivacyError
	return errors.As(err, &e)
}
