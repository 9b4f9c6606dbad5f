package render

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/envelope"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoURI = "https://universe.mesosphere.com/repo"

func object(t *testing.T, text string) map[string]interface{} {
	t.Helper()
	obj, err := jsonutil.ParseObject([]byte(text))
	require.NoError(t, err)
	return obj
}

func helloPackage(template *string, config map[string]interface{}) *types.V3Package {
	pkg := &types.V3Package{
		Common: types.Common{
			Name:        "hello",
			Version:     "1.0.0",
			Maintainer:  "ops@example.com",
			Description: "says hello",
			Config:      config,
		},
		MinDcosReleaseVersion: "1.10",
	}
	if template != nil {
		pkg.Marathon = &types.Marathon{V2AppMustacheTemplate: []byte(*template)}
	}
	return pkg
}

func tmpl(s string) *string { return &s }

func decodeB64(t *testing.T, v interface{}) string {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "label is not a string: %#v", v)
	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return string(raw)
}

func TestExtractDefaults(t *testing.T) {
	schema := object(t, `{
		"type": "object",
		"properties": {
			"name":    {"type": "string", "default": "hello"},
			"cpus":    {"type": "number", "default": 0.5},
			"flag":    {"type": "boolean", "default": false},
			"nothing": {"default": null},
			"list":    {"type": "array", "default": [1, 2]},
			"noDefault": {"type": "string"},
			"nested": {
				"type": "object",
				"properties": {
					"port": {"type": "integer", "default": 8080},
					"tls":  {"type": "object", "properties": {"on": {"default": true}}}
				}
			},
			"objDefault": {"type": "object", "default": {"x": 1}, "properties": {"y": {"default": 2}}}
		}
	}`)

	got := ExtractDefaults(schema)

	want := object(t, `{
		"name": "hello",
		"cpus": 0.5,
		"flag": false,
		"nothing": null,
		"list": [1, 2],
		"nested": {"port": 8080, "tls": {"on": true}},
		"objDefault": {"x": 1}
	}`)
	assert.Equal(t, want, got)
}

func TestBuildContextPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		options string
		assets  *types.Assets
		want    string
	}{
		{
			name:    "option overrides default",
			schema:  `{"properties": {"a": {"type": "boolean", "default": false}}}`,
			options: `{"a": true}`,
			want:    `{"a": true}`,
		},
		{
			name:    "objects merge recursively",
			schema:  `{"properties": {"a": {"type": "object", "properties": {"a": {"type": "boolean", "default": false}}}}}`,
			options: `{"a": {"b": false}}`,
			want:    `{"a": {"a": false, "b": false}}`,
		},
		{
			name:    "arrays are replaced",
			schema:  `{"properties": {"l": {"type": "array", "default": [1, 2, 3]}}}`,
			options: `{"l": [9]}`,
			want:    `{"l": [9]}`,
		},
		{
			name:   "defaults only",
			schema: `{"properties": {"a": {"default": "x"}}}`,
			want:   `{"a": "x"}`,
		},
		{
			name:    "resource wins over options",
			schema:  `{"properties": {"a": {"default": 1}}}`,
			options: `{"resource": {"assets": {"uris": {"jar": "user.jar", "extra": "kept"}}}}`,
			assets:  &types.Assets{URIs: map[string]string{"jar": "https://downloads/hello.jar"}},
			want:    `{"a": 1, "resource": {"assets": {"uris": {"jar": "https://downloads/hello.jar", "extra": "kept"}}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := types.Normalize(helloPackage(nil, object(t, tt.schema)))
			if tt.assets != nil {
				view.Resource = &types.Resource{Assets: tt.assets}
			}
			var options map[string]interface{}
			if tt.options != "" {
				options = object(t, tt.options)
			}

			got, err := BuildContext(view, options)

			require.NoError(t, err)
			assert.Equal(t, object(t, tt.want), got)
		})
	}
}

func TestBuildContextOptionsWithoutSchema(t *testing.T) {
	view := types.Normalize(helloPackage(nil, nil))

	_, err := BuildContext(view, map[string]interface{}{"a": true})
	assert.True(t, apierr.IsKind(err, apierr.KindOptionsNotAllowed))

	_, err = BuildContext(view, map[string]interface{}{})
	assert.True(t, apierr.IsKind(err, apierr.KindOptionsNotAllowed), "an empty options object is still options")

	got, err := BuildContext(view, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateOptionsReportsEveryViolation(t *testing.T) {
	schema := object(t, `{
		"type": "object",
		"properties": {
			"port": {"type": "integer"},
			"name": {"type": "string"}
		}
	}`)

	err := ValidateOptions(schema, object(t, `{"port": "http", "name": 5}`))

	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.KindAggregate, apiErr.Kind)
	require.Len(t, apiErr.Errors, 2)
	assert.Equal(t, apierr.KindSchemaMismatch, apiErr.Errors[0].Kind)
	assert.Equal(t, "name", apiErr.Errors[0].Data["field"])
	assert.Equal(t, "port", apiErr.Errors[1].Data["field"])

	assert.NoError(t, ValidateOptions(schema, object(t, `{"port": 80, "name": "web"}`)))
}

func TestExpandDoesNotEscape(t *testing.T) {
	scope := map[string]interface{}{"v": `<a href='x'>&"`}

	out, err := Expand([]byte(`{{v}}|{{{v}}}|{{&v}}`), scope)

	require.NoError(t, err)
	assert.Equal(t, `<a href='x'>&"|<a href='x'>&"|<a href='x'>&"`, out)
}

func TestExpandPreservesTemplateEscapes(t *testing.T) {
	template := `{"cmd": "echo \"{{name}}\"\nexit 0"}`

	out, err := Expand([]byte(template), map[string]interface{}{"name": "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"cmd": "echo \"hello\"\nexit 0"}`, out)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "echo \"hello\"\nexit 0", parsed["cmd"])
}

func TestExpandValues(t *testing.T) {
	scope := object(t, `{
		"count": 1000000,
		"ratio": 1.50,
		"on": true,
		"off": false,
		"none": null,
		"env": {"B": "2", "A": "1"},
		"args": ["--a", "--b"],
		"apps": [{"id": "x"}, {"id": "y"}],
		"nested": {"inner": {"v": "deep"}}
	}`)

	tests := []struct {
		template string
		want     string
	}{
		{`{{count}}`, `1000000`},
		{`{{ratio}}`, `1.50`},
		{`{{on}}`, `true`},
		{`{{none}}`, `null`},
		{`{{env}}`, `{"A":"1","B":"2"}`},
		{`{{args}}`, `["--a","--b"]`},
		{`{{nested.inner.v}}`, `deep`},
		{`{{missing}}`, ``},
		{`{{#on}}yes{{/on}}`, `yes`},
		{`{{#off}}yes{{/off}}`, ``},
		{`{{^off}}no{{/off}}`, `no`},
		{`{{#missing}}yes{{/missing}}`, ``},
		{`{{^missing}}absent{{/missing}}`, `absent`},
		{`{{#args}}[{{.}}]{{/args}}`, `[--a][--b]`},
		{`{{#apps}}{{id}};{{/apps}}`, `x;y;`},
		{`{{#env}}{{A}}{{/env}}`, `1`},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			out, err := Expand([]byte(tt.template), scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExpandRejectsBrokenTemplate(t *testing.T) {
	_, err := Expand([]byte(`{{#open}}never closed`), nil)
	assert.True(t, apierr.IsKind(err, apierr.KindInvalidPackage))
}

func TestRenderApplicationLabels(t *testing.T) {
	template := `{
		"id": "/hello",
		"cpus": {{cpus}},
		"labels": {
			"custom": "kept",
			"DCOS_PACKAGE_NAME": "spoofed",
			"DCOS_PACKAGE_OPTIONS": "spoofed",
			"DCOS_PACKAGE_DEFINITION": "spoofed"
		}
	}`
	pkg := helloPackage(tmpl(template), object(t, `{"properties": {"cpus": {"type": "number", "default": 0.5}}}`))
	options := object(t, `{"cpus": 2}`)

	app, err := NewRenderer(nil, nil).RenderApplication(repoURI, pkg, options, nil)
	require.NoError(t, err)

	assert.Equal(t, "/hello", app["id"])
	assert.Equal(t, json.Number("2"), app["cpus"])

	labels, ok := app["labels"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "kept", labels["custom"])
	assert.Equal(t, "hello", labels[LabelPackageName])
	assert.Equal(t, "1.0.0", labels[LabelPackageVersion])
	assert.Equal(t, repoURI, labels[LabelPackageSource])
	assert.JSONEq(t, `{"cpus": 2}`, decodeB64(t, labels[LabelPackageOptions]))
	assert.JSONEq(t, `{
		"packagingVersion": "3.0",
		"name": "hello",
		"version": "1.0.0",
		"maintainer": "ops@example.com",
		"description": "says hello",
		"tags": [],
		"selected": false,
		"framework": false
	}`, decodeB64(t, labels[LabelPackageMetadata]))

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal([]byte(decodeB64(t, labels[LabelPackageDefinition])), &env))
	assert.True(t, envelope.PackageDefinitionV1.Compatible(env.Metadata[envelope.ContentTypeKey]))
}

func TestRenderApplicationAbsentOptionsLabel(t *testing.T) {
	app, err := NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(tmpl(`{}`), nil), nil, nil)
	require.NoError(t, err)

	labels := app["labels"].(map[string]interface{})
	assert.Equal(t, "{}", decodeB64(t, labels[LabelPackageOptions]))
}

func TestRenderApplicationAppID(t *testing.T) {
	tests := []struct {
		name     string
		template string
		appID    *string
		wantID   interface{}
		hasID    bool
	}{
		{"explicit wins", `{"id": "/from-template"}`, tmpl("/explicit"), "/explicit", true},
		{"explicit without template id", `{}`, tmpl("/explicit"), "/explicit", true},
		{"template id kept", `{"id": "/from-template"}`, nil, "/from-template", true},
		{"no id at all", `{}`, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(tmpl(tt.template), nil), nil, tt.appID)
			require.NoError(t, err)

			id, ok := app["id"]
			assert.Equal(t, tt.hasID, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestRenderApplicationWithoutTemplate(t *testing.T) {
	app, err := NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(nil, nil), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, app)

	app, err = NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(tmpl(`{}`), nil), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Contains(t, app, "labels")
}

func TestRenderApplicationFailures(t *testing.T) {
	tests := []struct {
		name     string
		template *string
		config   string
		options  string
		want     apierr.Kind
	}{
		{"options without schema", tmpl(`{}`), "", `{"a": 1}`, apierr.KindOptionsNotAllowed},
		{"template renders an array", tmpl(`[1, 2]`), "", "", apierr.KindTemplateNotObject},
		{"template renders a string", tmpl(`"app"`), "", "", apierr.KindTemplateNotObject},
		{"template renders invalid json", tmpl(`{"id": {{name}}}`), `{"properties": {"name": {"default": "x y"}}}`, "", apierr.KindJSONParsing},
		{"empty template", tmpl(``), "", "", apierr.KindJSONParsing},
		{"labels not strings", tmpl(`{"labels": {"a": 1}}`), "", "", apierr.KindJSONDecoding},
		{"labels not an object", tmpl(`{"labels": ["a"]}`), "", "", apierr.KindJSONDecoding},
		{"options violate schema", tmpl(`{}`), `{"properties": {"port": {"type": "integer"}}}`, `{"port": "x"}`, apierr.KindSchemaMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config, options map[string]interface{}
			if tt.config != "" {
				config = object(t, tt.config)
			}
			if tt.options != "" {
				options = object(t, tt.options)
			}

			app, err := NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(tt.template, config), options, nil)

			assert.Nil(t, app)
			assert.True(t, apierr.IsKind(err, tt.want), "got %v", err)
		})
	}
}

func TestLabelsDecodeErrorNamesField(t *testing.T) {
	_, err := NewRenderer(nil, nil).RenderApplication(repoURI, helloPackage(tmpl(`{"labels": 7}`), nil), nil, nil)

	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "labels", apiErr.Data["path"])
}

func TestDefinitionRoundTripsThroughLabels(t *testing.T) {
	pkg := helloPackage(tmpl(`{"id": "/hello"}`), object(t, `{"properties": {"port": {"type": "integer", "default": 8080}}}`))
	pkg.Resource = &types.Resource{Assets: &types.Assets{URIs: map[string]string{"jar": "https://downloads/hello.jar"}}}
	options := object(t, `{"port": 9090}`)

	app, err := NewRenderer(nil, nil).RenderApplication(repoURI, pkg, options, nil)
	require.NoError(t, err)

	labels := make(map[string]string)
	for k, v := range app["labels"].(map[string]interface{}) {
		labels[k] = v.(string)
	}

	def, err := DefinitionFromLabels(labels)
	require.NoError(t, err)
	assert.Equal(t, pkg, def)

	opts, err := OptionsFromLabels(labels)
	require.NoError(t, err)
	assert.Equal(t, options, opts)
}

func TestDefinitionFromLabelsErrors(t *testing.T) {
	_, err := DefinitionFromLabels(map[string]string{})
	assert.True(t, apierr.IsKind(err, apierr.KindJSONDecoding))

	_, err = DefinitionFromLabels(map[string]string{LabelPackageDefinition: "%%%"})
	assert.True(t, apierr.IsKind(err, apierr.KindJSONDecoding))

	foreign, err := envelope.Encode(envelope.RepositoryListV1, map[string]interface{}{"repositories": []interface{}{}})
	require.NoError(t, err)
	_, err = DefinitionFromLabels(map[string]string{LabelPackageDefinition: base64.StdEncoding.EncodeToString(foreign)})
	assert.True(t, apierr.IsKind(err, apierr.KindStorageSchema))
}

func TestRenderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(reg, reg)
	r := NewRenderer(nil, metrics)

	_, _ = r.RenderApplication(repoURI, helloPackage(tmpl(`{}`), nil), nil, nil)
	_, _ = r.RenderApplication(repoURI, helloPackage(nil, nil), nil, nil)
	_, _ = r.RenderApplication(repoURI, helloPackage(tmpl(`[]`), nil), nil, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("no_template")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renders.WithLabelValues(string(apierr.KindTemplateNotObject))))
}
