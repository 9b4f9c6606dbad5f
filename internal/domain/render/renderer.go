package render

import (
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
	"go.uber.org/zap"
)

// Renderer produces application definitions from package definitions.
type Renderer struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewRenderer creates a renderer. Both arguments may be nil.
func NewRenderer(logger *zap.Logger, metrics *monitoring.Metrics) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger, metrics: metrics}
}

// RenderApplication renders def for installation from repositoryURI. It
// returns nil without error when the package has no template. A non-nil
// appID replaces the id the template produced.
func (r *Renderer) RenderApplication(repositoryURI string, def types.PackageDefinition, options map[string]interface{}, appID *string) (map[string]interface{}, error) {
	timer := monitoring.NewTimer()
	view := types.Normalize(def)

	app, err := r.render(repositoryURI, def, view, options, appID)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(apierr.KindOf(err))
		r.logger.Warn("package render failed",
			zap.String("package", view.Name),
			zap.String("version", view.Version),
			zap.String("kind", outcome),
			zap.Error(err),
		)
	case app == nil:
		outcome = "no_template"
	default:
		r.logger.Debug("package rendered",
			zap.String("package", view.Name),
			zap.String("version", view.Version),
			zap.Duration("duration", timer.Elapsed()),
		)
	}
	r.metrics.RecordRender(outcome, timer.Elapsed())

	return app, err
}

func (r *Renderer) render(repositoryURI string, def types.PackageDefinition, view types.PackageView, options map[string]interface{}, appID *string) (map[string]interface{}, error) {
	if !view.HasTemplate() {
		return nil, nil
	}

	scope, err := BuildContext(view, options)
	if err != nil {
		return nil, err
	}

	text, err := Expand(view.Marathon.V2AppMustacheTemplate, scope)
	if err != nil {
		return nil, err
	}

	parsed, err := jsonutil.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	app, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, apierr.TemplateNotObject(jsonutil.TypeName(parsed))
	}

	err = injectLabels(app, labelSource{
		repositoryURI: repositoryURI,
		definition:    def,
		view:          view,
		options:       options,
		appID:         appID,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}
