// Package envelope wraps stored payloads in a versioned, content-typed
// envelope so readers can detect schema changes before decoding.
//
// Wire format:
//
//	{"metadata":{"Content-Type":"<media-type>;charset=utf-8;version=v1"},"data":"<base64>"}
//
// data holds the UTF-8 JSON text of the payload.
package envelope

import (
	"fmt"
	"mime"
	"strings"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
)

// ContentTypeKey is the metadata key holding the media type tag.
const ContentTypeKey = "Content-Type"

// Envelope is the stored representation of a payload.
type Envelope struct {
	Metadata map[string]string `json:"metadata"`
	Data     []byte            `json:"data"`
}

// MediaType is a versioned media type, e.g.
// application/vnd.dcos.package.repository.repository-list+json;charset=utf-8;version=v1
type MediaType struct {
	Type    string
	Charset string
	Version string
}

// String renders the media type in its canonical header form.
func (m MediaType) String() string {
	return fmt.Sprintf("%s;charset=%s;version=%s", m.Type, m.Charset, m.Version)
}

// Compatible reports whether a Content-Type header value can be read as m.
// Type and version must match exactly; charset is case-insensitive.
func (m MediaType) Compatible(header string) bool {
	if header == "" {
		return false
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == strings.ToLower(m.Type) &&
		params["version"] == m.Version &&
		strings.EqualFold(params["charset"], m.Charset)
}

// ParseMediaType parses a Content-Type value into a MediaType.
func ParseMediaType(header string) (MediaType, error) {
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return MediaType{}, err
	}
	return MediaType{
		Type:    mediaType,
		Charset: params["charset"],
		Version: params["version"],
	}, nil
}

var (
	// RepositoryListV1 tags a stored repository catalog.
	RepositoryListV1 = MediaType{
		Type:    "application/vnd.dcos.package.repository.repository-list+json",
		Charset: "utf-8",
		Version: "v1",
	}

	// PackageDefinitionV1 tags a serialized package definition.
	PackageDefinitionV1 = MediaType{
		Type:    "application/vnd.dcos.universe.package+json",
		Charset: "utf-8",
		Version: "v1",
	}
)

// Encode serializes payload as JSON and wraps it in an envelope tagged with mediaType.
func Encode(mediaType MediaType, payload interface{}) ([]byte, error) {
	data, err := jsonutil.Marshal(payload)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to encode payload: %w", err))
	}

	env := Envelope{
		Metadata: map[string]string{ContentTypeKey: mediaType.String()},
		Data:     data,
	}

	out, err := jsonutil.Marshal(env)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to encode envelope: %w", err))
	}
	return out, nil
}

// Open parses envelope bytes and returns the payload bytes once the
// Content-Type has been checked against mediaType.
func Open(mediaType MediaType, raw []byte) ([]byte, error) {
	var env Envelope
	if err := jsonutil.Decode(raw, &env); err != nil {
		return nil, err
	}

	contentType := env.Metadata[ContentTypeKey]
	if !mediaType.Compatible(contentType) {
		return nil, apierr.StorageSchema(mediaType.String(), contentType)
	}

	return env.Data, nil
}

// Decode opens the envelope and decodes its payload into out. The payload is
// never decoded when the Content-Type does not match.
func Decode(mediaType MediaType, raw []byte, out interface{}) error {
	data, err := Open(mediaType, raw)
	if err != nil {
		return err
	}
	return jsonutil.Decode(data, out)
}
