package render

import (
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
)

// ExtractDefaults builds the object described by the defaults in a JSON
// schema. A property with a default takes it verbatim; a property with
// nested properties and no default recurses; anything else is left out.
func ExtractDefaults(schema map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return out
	}

	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			out[name] = def
			continue
		}
		if _, ok := prop["properties"].(map[string]interface{}); ok {
			out[name] = ExtractDefaults(prop)
		}
	}

	return out
}

// BuildContext assembles the template scope for view. Options are only
// accepted when the package declares a config schema.
func BuildContext(view types.PackageView, options map[string]interface{}) (map[string]interface{}, error) {
	if options != nil && view.Config == nil {
		return nil, apierr.OptionsNotAllowed()
	}

	merged := make(map[string]interface{})
	if view.Config != nil {
		merged = jsonutil.Merge(ExtractDefaults(view.Config), options)
		if err := ValidateOptions(view.Config, merged); err != nil {
			return nil, err
		}
	}

	resource, err := resourceObject(view)
	if err != nil {
		return nil, err
	}
	if len(resource) > 0 {
		merged = jsonutil.Merge(merged, map[string]interface{}{"resource": resource})
	}

	return merged, nil
}

// resourceObject is the generic form of the package's assets.
func resourceObject(view types.PackageView) (map[string]interface{}, error) {
	if view.Resource == nil || view.Resource.Assets == nil {
		return nil, nil
	}

	var assets map[string]interface{}
	if err := jsonutil.Convert(view.Resource.Assets, &assets); err != nil {
		return nil, err
	}
	return map[string]interface{}{"assets": assets}, nil
}
