package render

import (
	"github.com/cbroglie/mustache"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
)

// Expand renders a mustache template against scope. Substitutions are
// written raw: the output is JSON, so entity escaping would corrupt it.
func Expand(template []byte, scope map[string]interface{}) (string, error) {
	tmpl, err := mustache.ParseStringRaw(string(template), true)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidPackage, "Package template is not a valid mustache template", err)
	}

	out, err := tmpl.Render(toScope(scope))
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidPackage, "Package template failed to render", err)
	}
	return out, nil
}

// Scope value types. Objects and arrays stay navigable by the template
// engine while printing as compact JSON when substituted directly.
type (
	jsonObject map[string]interface{}
	jsonArray  []interface{}
	jsonNull   struct{}
)

func (o jsonObject) String() string { return compact(o.generic()) }
func (a jsonArray) String() string  { return compact(a.generic()) }
func (jsonNull) String() string     { return "null" }

func toScope(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return jsonNull{}
	case map[string]interface{}:
		out := make(jsonObject, len(val))
		for k, item := range val {
			out[k] = toScope(item)
		}
		return out
	case []interface{}:
		out := make(jsonArray, len(val))
		for i, item := range val {
			out[i] = toScope(item)
		}
		return out
	default:
		return v
	}
}

func fromScope(v interface{}) interface{} {
	switch val := v.(type) {
	case jsonNull:
		return nil
	case jsonObject:
		return val.generic()
	case jsonArray:
		return val.generic()
	default:
		return v
	}
}

func (o jsonObject) generic() map[string]interface{} {
	out := make(map[string]interface{}, len(o))
	for k, v := range o {
		out[k] = fromScope(v)
	}
	return out
}

func (a jsonArray) generic() []interface{} {
	out := make([]interface{}, len(a))
	for i, v := range a {
		out[i] = fromScope(v)
	}
	return out
}

func compact(v interface{}) string {
	data, _ := jsonutil.Marshal(v)
	return string(data)
}
