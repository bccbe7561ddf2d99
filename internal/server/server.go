// Package server exposes the workflow catalog over a read-only HTTP API.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/storage"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfkit_http_requests_total",
			Help: "Total number of HTTP requests received.",
		},
		[]string{"handler", "method", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wfkit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func sendResponse(c *gin.Context, statusCode int, success bool, data map[string]interface{}, errorMsg string) {
	c.JSON(statusCode, APIResponse{Success: success, Data: data, Error: errorMsg})
}

func sendSuccess(c *gin.Context, data map[string]interface{}) {
	sendResponse(c, http.StatusOK, true, data, "")
}

func sendError(c *gin.Context, statusCode int, errorMsg string) {
	sendResponse(c, statusCode, false, nil, errorMsg)
}

// Options configures the API.
type Options struct {
	Store        storage.Store
	WorkflowsDir string
	Lint         workflow.LintOptions
	Version      string
	Debug        bool

	// TracerProvider overrides the global provider for request spans.
	TracerProvider trace.TracerProvider
}

// Server serves the catalog API.
type Server struct {
	opts    Options
	router  *gin.Engine
	handler http.Handler
}

// New builds the router for opts.
func New(opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{opts: opts}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(instrument())

	r.GET("/health", s.handleHealth)
	r.GET("/workflows", s.handleList)
	r.GET("/workflows/:filename", s.handleGet)
	r.GET("/workflows/:filename/validate", s.handleValidate)
	r.GET("/stats", s.handleStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var traceOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		traceOpts = append(traceOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	s.router = r
	s.handler = otelhttp.NewHandler(r, "wfkit.api", traceOpts...)
	return s
}

// Handler returns the HTTP handler, traced.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.LogInfo("Shutting down API server", nil)
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument records request metrics and logs each request.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		elapsed := time.Since(start)
		code := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(handler, c.Request.Method, code).Inc()
		httpRequestDuration.WithLabelValues(handler, c.Request.Method).Observe(elapsed.Seconds())

		logger.LogDebug("HTTP request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": elapsed.String(),
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	sendSuccess(c, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   s.opts.Version,
	})
}

func parseFilter(c *gin.Context) (storage.Filter, error) {
	filter := storage.Filter{
		TriggerType: c.Query("trigger"),
		Complexity:  c.Query("complexity"),
		Category:    c.Query("category"),
		Integration: c.Query("integration"),
		Query:       c.Query("q"),
	}

	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, err
		}
		filter.Active = &active
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, stderrors.New(name + " must be a non-negative integer")
		}
		*dst = n
	}
	return filter, nil
}

func (s *Server) handleList(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid query: "+err.Error())
		return
	}

	records, err := s.opts.Store.List(c.Request.Context(), filter)
	if err != nil {
		logger.LogError("Failed to list workflows", err, nil)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, map[string]interface{}{"workflows": records, "count": len(records)})
}

func (s *Server) handleGet(c *gin.Context) {
	rec, err := s.opts.Store.Get(c.Request.Context(), c.Param("filename"))
	if err != nil {
		if stderrors.Is(err, errors.ErrStoreNotFound) {
			sendError(c, http.StatusNotFound, err.Error())
			return
		}
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, map[string]interface{}{"workflow": rec})
}

// validFilename accepts bare document names inside the workflows directory.
func validFilename(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".") &&
		strings.HasSuffix(strings.ToLower(name), ".json")
}

func (s *Server) handleValidate(c *gin.Context) {
	name := c.Param("filename")
	if !validFilename(name) {
		sendError(c, http.StatusBadRequest, "invalid workflow filename")
		return
	}

	doc, report := workflow.ValidateFile(filepath.Join(s.opts.WorkflowsDir, name))
	if doc == nil && report.Has(workflow.CodeUnreadable) {
		sendError(c, http.StatusNotFound, "workflow not found: "+name)
		return
	}

	var lint []workflow.Issue
	if doc != nil {
		lint = workflow.Lint(doc, s.opts.Lint)
	}
	if lint == nil {
		lint = []workflow.Issue{}
	}
	issues := report.Issues
	if issues == nil {
		issues = []workflow.Issue{}
	}

	sendSuccess(c, map[string]interface{}{
		"filename": name,
		"valid":    report.Valid(),
		"issues":   issues,
		"lint":     lint,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.opts.Store.Stats(c.Request.Context())
	if err != nil {
		logger.LogError("Failed to compute stats", err, nil)
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccess(c, map[string]interface{}{"stats": stats})
}
