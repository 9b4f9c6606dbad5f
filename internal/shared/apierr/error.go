package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a taxonomy error. It carries enough structured detail to render
// the client response without re-deriving anything from the cause.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]interface{}
	// Errors holds the ordered members of an aggregate.
	Errors []*Error
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindAggregate {
		msgs := make([]string, len(e.Errors))
		for i, member := range e.Errors {
			msgs[i] = member.Error()
		}
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(msgs, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// With attaches a detail field and returns the same error.
func (e *Error) With(key string, value interface{}) *Error {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts the taxonomy error from an error chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	if apiErr, ok := As(err); ok {
		return apiErr.Kind
	}
	return KindInternal
}

// JSONParsing reports text that is not valid JSON.
func JSONParsing(reason string, cause error) *Error {
	e := Wrap(KindJSONParsing, "Unable to parse JSON", cause)
	return e.With("type", "parse").With("reason", reason)
}

// JSONDecoding reports JSON that does not decode into the expected shape.
func JSONDecoding(path, reason string, cause error) *Error {
	e := Wrap(KindJSONDecoding, fmt.Sprintf("Unable to decode JSON at %q", path), cause)
	return e.With("type", "decode").With("reason", reason).With("path", path)
}

// TemplateNotObject reports a rendered template whose top level is not an object.
func TemplateNotObject(jsonType string) *Error {
	return New(KindTemplateNotObject, "Rendered Marathon JSON must be a JSON object").
		With("jsonType", jsonType)
}

// OptionsNotAllowed reports options supplied to a package with no config schema.
func OptionsNotAllowed() *Error {
	return New(KindOptionsNotAllowed, "No schema available to validate the provided options")
}

// SchemaMismatch reports one config schema violation.
func SchemaMismatch(field, description string) *Error {
	return New(KindSchemaMismatch, fmt.Sprintf("Options do not match schema at %q: %s", field, description)).
		With("field", field).
		With("description", description)
}

// InvalidPackage reports an unknown or malformed package definition.
func InvalidPackage(packagingVersion string) *Error {
	return New(KindInvalidPackage, fmt.Sprintf("Unsupported packaging version %q", packagingVersion)).
		With("packagingVersion", packagingVersion)
}

// MissingFilter reports a delete request with no filter.
func MissingFilter() *Error {
	return New(KindMissingFilter, "Must specify either the name or URI of the repository")
}

// AmbiguousFilter reports a delete request with both filters.
func AmbiguousFilter(name, uri string) *Error {
	return New(KindAmbiguousFilter, "Specify either the name or the URI of the repository, not both").
		With("name", name).
		With("uri", uri)
}

// RepositoryURI reports a repository uri that is not absolute.
func RepositoryURI(uri string, cause error) *Error {
	return Wrap(KindRepositoryURI, fmt.Sprintf("URI for repository has invalid syntax: %s", uri), cause).
		With("uri", uri)
}

// StorageSchema reports an envelope whose Content-Type cannot be read by this version.
func StorageSchema(expected, actual string) *Error {
	msg := fmt.Sprintf("Stored data has Content-Type %q, expected %q", actual, expected)
	if actual == "" {
		msg = fmt.Sprintf("Stored data has no Content-Type, expected %q", expected)
	}
	return New(KindStorageSchema, msg).
		With("expected", expected).
		With("actual", actual)
}

// ConcurrentModification reports a lost compare-and-swap race.
func ConcurrentModification(operation, path string) *Error {
	return New(KindConcurrentModification, "The resource was modified concurrently; retry from a fresh read").
		With("operation", operation).
		With("path", path)
}

// CoordinationFault reports a non-recoverable coordination service failure.
func CoordinationFault(operation, path string, cause error) *Error {
	return Wrap(KindCoordinationFault, fmt.Sprintf("Coordination service %s failed for %s", operation, path), cause).
		With("operation", operation).
		With("path", path)
}

// Aggregate collects several failures from one request. A single member is
// returned unwrapped.
func Aggregate(members ...*Error) *Error {
	if len(members) == 1 {
		return members[0]
	}
	return &Error{
		Kind:    KindAggregate,
		Message: fmt.Sprintf("%d errors occurred", len(members)),
		Errors:  members,
	}
}

// Internal wraps an error outside the taxonomy.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "Unexpected internal error", cause)
}
