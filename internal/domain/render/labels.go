package render

import (
	"encoding/base64"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/envelope"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
)

// Labels identifying the package. A template may set them, but the
// renderer's values win.
const (
	LabelPackageName    = "DCOS_PACKAGE_NAME"
	LabelPackageSource  = "DCOS_PACKAGE_SOURCE"
	LabelPackageVersion = "DCOS_PACKAGE_VERSION"
)

// Computed labels. Applied last so nothing can shadow them.
const (
	LabelPackageOptions    = "DCOS_PACKAGE_OPTIONS"
	LabelPackageMetadata   = "DCOS_PACKAGE_METADATA"
	LabelPackageDefinition = "DCOS_PACKAGE_DEFINITION"
)

// labelSource carries what the injector needs from one render call.
type labelSource struct {
	repositoryURI string
	definition    types.PackageDefinition
	view          types.PackageView
	options       map[string]interface{}
	appID         *string
}

// injectLabels rewrites app's labels and id in place.
func injectLabels(app map[string]interface{}, src labelSource) error {
	templateLabels, err := existingLabels(app)
	if err != nil {
		return err
	}

	required := map[string]string{
		LabelPackageName:    src.view.Name,
		LabelPackageSource:  src.repositoryURI,
		LabelPackageVersion: src.view.Version,
	}

	computed, err := computedLabels(src)
	if err != nil {
		return err
	}

	labels := make(map[string]interface{}, len(templateLabels)+len(required)+len(computed))
	for _, layer := range []map[string]string{templateLabels, required, computed} {
		for k, v := range layer {
			labels[k] = v
		}
	}
	app["labels"] = labels

	if src.appID != nil {
		app["id"] = *src.appID
	}
	return nil
}

func existingLabels(app map[string]interface{}) (map[string]string, error) {
	raw, ok := app["labels"]
	if !ok || raw == nil {
		return nil, nil
	}

	var labels map[string]string
	if err := jsonutil.Convert(raw, &labels); err != nil {
		return nil, apierr.JSONDecoding("labels", "expected an object of string values", err)
	}
	return labels, nil
}

func computedLabels(src labelSource) (map[string]string, error) {
	options := src.options
	if options == nil {
		options = map[string]interface{}{}
	}
	optionsJSON, err := jsonutil.Marshal(options)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	metadataJSON, err := jsonutil.Marshal(src.view.Metadata())
	if err != nil {
		return nil, apierr.Internal(err)
	}

	definition, err := envelope.Encode(envelope.PackageDefinitionV1, src.definition)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		LabelPackageOptions:    base64.StdEncoding.EncodeToString(optionsJSON),
		LabelPackageMetadata:   base64.StdEncoding.EncodeToString(metadataJSON),
		LabelPackageDefinition: base64.StdEncoding.EncodeToString(definition),
	}, nil
}

// DefinitionFromLabels recovers the package definition recorded on a
// deployed application.
func DefinitionFromLabels(labels map[string]string) (types.PackageDefinition, error) {
	data, err := decodeLabel(labels, LabelPackageDefinition)
	if err != nil {
		return nil, err
	}
	payload, err := envelope.Open(envelope.PackageDefinitionV1, data)
	if err != nil {
		return nil, err
	}
	return types.DecodePackageDefinition(payload)
}

// OptionsFromLabels recovers the user options recorded on a deployed application.
func OptionsFromLabels(labels map[string]string) (map[string]interface{}, error) {
	data, err := decodeLabel(labels, LabelPackageOptions)
	if err != nil {
		return nil, err
	}
	return jsonutil.ParseObject(data)
}

func decodeLabel(labels map[string]string, key string) ([]byte, error) {
	raw, ok := labels[key]
	if !ok {
		return nil, apierr.JSONDecoding(key, "label is missing", nil)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apierr.JSONDecoding(key, "label is not valid base64", err)
	}
	return data, nil
}
