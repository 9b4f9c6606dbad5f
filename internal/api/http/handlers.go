package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
)

// Catalog is the repository catalog behind the repository routes.
type Catalog interface {
	ReadCached(ctx context.Context) ([]types.PackageRepository, error)
	Add(ctx context.Context, index *int, repo types.PackageRepository) ([]types.PackageRepository, error)
	Delete(ctx context.Context, name, uri *string) ([]types.PackageRepository, error)
}

// Renderer turns package definitions into application definitions.
type Renderer interface {
	RenderApplication(repositoryURI string, def types.PackageDefinition, options map[string]interface{}, appID *string) (map[string]interface{}, error)
}

// Readiness reports whether the catalog mirror has completed its first read.
type Readiness interface {
	Ready() <-chan struct{}
}

// Handlers contains all HTTP handlers
type Handlers struct {
	catalog   Catalog
	renderer  Renderer
	readiness Readiness
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	timeout   time.Duration
	started   time.Time
}

// Options carries the optional collaborators of Handlers.
type Options struct {
	Readiness Readiness
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	// Timeout bounds each catalog operation. Zero means no bound beyond the
	// request context.
	Timeout time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(catalog Catalog, renderer Renderer, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		catalog:   catalog,
		renderer:  renderer,
		readiness: opts.Readiness,
		metrics:   opts.Metrics,
		logger:    logger,
		timeout:   opts.Timeout,
		started:   time.Now(),
	}
}

type listRequest struct{}

type addRequest struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	Index *int   `json:"index"`
}

type deleteRequest struct {
	Name *string `json:"name"`
	URI  *string `json:"uri"`
}

type renderRequest struct {
	RepositoryURI string                 `json:"repositoryUri"`
	Package       json.RawMessage        `json:"package"`
	Options       map[string]interface{} `json:"options"`
	AppID         *string                `json:"appId"`
}

type repositoriesResponse struct {
	Repositories []types.PackageRepository `json:"repositories"`
}

type renderResponse struct {
	MarathonJSON map[string]interface{} `json:"marathonJson,omitempty"`
}

// ListRepositories returns the catalog, possibly trailing recent writes.
func (h *Handlers) ListRepositories(c *gin.Context) {
	var req listRequest
	if !h.bind(c, &req) {
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	repos, err := h.catalog.ReadCached(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, repositoriesResponse{Repositories: repos})
}

// AddRepository inserts a repository and returns the resulting catalog.
func (h *Handlers) AddRepository(c *gin.Context) {
	var req addRequest
	if !h.bind(c, &req) {
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	repos, err := h.catalog.Add(ctx, req.Index, types.PackageRepository{Name: req.Name, URI: req.URI})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, repositoriesResponse{Repositories: repos})
}

// DeleteRepository removes repositories by name or by uri.
func (h *Handlers) DeleteRepository(c *gin.Context) {
	var req deleteRequest
	if !h.bind(c, &req) {
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	repos, err := h.catalog.Delete(ctx, req.Name, req.URI)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, repositoriesResponse{Repositories: repos})
}

// RenderPackage renders the application definition of a package. A package
// without a template yields an empty object.
func (h *Handlers) RenderPackage(c *gin.Context) {
	var req renderRequest
	if !h.bind(c, &req) {
		return
	}
	if len(req.Package) == 0 || string(req.Package) == "null" {
		h.fail(c, apierr.JSONDecoding("package", "package is required", nil))
		return
	}

	def, err := types.DecodePackageDefinition(req.Package)
	if err != nil {
		h.fail(c, err)
		return
	}

	app, err := h.renderer.RenderApplication(req.RepositoryURI, def, req.Options, req.AppID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, renderResponse{MarathonJSON: app})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	ready := true
	if h.readiness != nil {
		select {
		case <-h.readiness.Ready():
		default:
			ready = false
		}
	}

	status := "healthy"
	if !ready {
		status = "starting"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"mirror":  gin.H{"ready": ready},
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"metrics": h.metrics.Snapshot(),
	})
}

// bind decodes the request body. An empty body reads as an empty object.
func (h *Handlers) bind(c *gin.Context, v interface{}) bool {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, apierr.Internal(err))
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := jsonutil.Decode(body, v); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

func (h *Handlers) operationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, resp := apierr.Translate(err)
	_ = c.Error(err)

	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("type", string(resp.Type)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, resp)
}
