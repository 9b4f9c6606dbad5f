package render

import (
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
)

// ValidateOptions checks the merged defaults and options against the
// package's config schema. Every violation is reported, ordered by field.
func ValidateOptions(schema, values map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(values),
	)
	if err != nil {
		return apierr.Wrap(apierr.KindInvalidPackage, "Package config is not a usable JSON schema", err)
	}
	if result.Valid() {
		return nil
	}

	violations := result.Errors()
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Field() < violations[j].Field()
	})

	members := make([]*apierr.Error, 0, len(violations))
	for _, v := range violations {
		members = append(members, apierr.SchemaMismatch(v.Field(), v.Description()))
	}
	return apierr.Aggregate(members...)
}
