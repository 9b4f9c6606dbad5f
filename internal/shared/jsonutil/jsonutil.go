// Package jsonutil holds the generic JSON value helpers used by the envelope
// codec and the renderer.
//
// Generic values are the usual decoded forms: nil, bool, json.Number, string,
// []interface{} and map[string]interface{}. Numbers are always json.Number so
// that re-encoding preserves the original literal.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
)

// generic decodes untyped trees with number literals preserved.
var generic = sonic.Config{
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()

// Parse decodes arbitrary JSON text into a generic value.
func Parse(data []byte) (interface{}, error) {
	var v interface{}
	if err := generic.Unmarshal(data, &v); err != nil {
		return nil, apierr.JSONParsing(err.Error(), err)
	}
	return v, nil
}

// ParseObject decodes JSON text that must be an object.
func ParseObject(data []byte) (map[string]interface{}, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, apierr.JSONDecoding("", fmt.Sprintf("expected object, got %s", TypeName(v)), nil)
	}
	return obj, nil
}

// Marshal encodes v with sorted object keys so equal values encode identically.
func Marshal(v interface{}) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

// Decode decodes JSON text into a typed value, separating syntax failures
// from shape failures. Shape failures carry the offending field path.
func Decode(data []byte, v interface{}) error {
	if !json.Valid(data) {
		var raw json.RawMessage
		err := json.Unmarshal(data, &raw)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return apierr.JSONParsing(err.Error(), err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			reason := fmt.Sprintf("expected %s, got %s", typeErr.Type.String(), typeErr.Value)
			return apierr.JSONDecoding(typeErr.Field, reason, err)
		}
		return apierr.JSONDecoding("", err.Error(), err)
	}
	return nil
}

// Convert re-shapes a generic value into a typed one through its JSON form.
func Convert(src interface{}, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return apierr.Internal(err)
	}
	return Decode(data, dst)
}

// TypeName names the JSON type of a generic value.
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
