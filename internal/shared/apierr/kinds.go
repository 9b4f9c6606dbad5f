// Package apierr defines the error taxonomy shared by the repository catalog
// and the package renderer, and translates it into client-facing responses.
package apierr

import "net/http"

// Kind is a stable, client-facing error code.
// Kinds are strings so they serialize naturally and stay greppable in logs.
type Kind string

const (
	// Parsing and decoding.

	// KindJSONParsing indicates text that is not syntactically valid JSON.
	KindJSONParsing Kind = "JsonParsingError"

	// KindJSONDecoding indicates valid JSON that does not match the expected shape.
	KindJSONDecoding Kind = "JsonDecodingError"

	// Rendering.

	// KindTemplateNotObject indicates a rendered template that is not a JSON object.
	KindTemplateNotObject Kind = "MarathonTemplateMustBeJsonObject"

	// KindOptionsNotAllowed indicates options supplied for a package without a config schema.
	KindOptionsNotAllowed Kind = "OptionsNotAllowed"

	// KindSchemaMismatch indicates options that violate the package config schema.
	KindSchemaMismatch Kind = "JsonSchemaMismatch"

	// KindInvalidPackage indicates a package definition with an unknown packaging version.
	KindInvalidPackage Kind = "InvalidPackageDefinition"

	// Repository catalog.

	// KindMissingFilter indicates a catalog delete without a name or uri.
	KindMissingFilter Kind = "MissingFilterCriteria"

	// KindAmbiguousFilter indicates a catalog delete with both a name and a uri.
	KindAmbiguousFilter Kind = "AmbiguousFilterCriteria"

	// KindRepositoryURI indicates a repository uri that is not an absolute URI.
	KindRepositoryURI Kind = "RepositoryUriSyntax"

	// KindStorageSchema indicates an envelope whose Content-Type is absent or incompatible.
	KindStorageSchema Kind = "RepositoryStorageSchemaError"

	// Coordination service.

	// KindConcurrentModification indicates a version or existence conflict. Retryable.
	KindConcurrentModification Kind = "ConcurrentModification"

	// KindCoordinationFault indicates any other coordination service failure.
	KindCoordinationFault Kind = "CoordinationServiceFault"

	// Aggregation and fallbacks.

	// KindAggregate carries several independent failures from one request.
	KindAggregate Kind = "AggregateError"

	// KindInternal is used for errors outside the taxonomy.
	KindInternal Kind = "InternalError"
)

// Status maps a kind to the HTTP status used by the transport layer.
func (k Kind) Status() int {
	switch k {
	case KindJSONParsing, KindJSONDecoding, KindTemplateNotObject, KindOptionsNotAllowed,
		KindSchemaMismatch, KindInvalidPackage, KindMissingFilter, KindAmbiguousFilter,
		KindRepositoryURI, KindAggregate:
		return http.StatusBadRequest
	case KindConcurrentModification:
		return http.StatusConflict
	case KindCoordinationFault:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the whole operation from a fresh read.
func (k Kind) Retryable() bool {
	return k == KindConcurrentModification
}
