// Package httpapi provides the HTTP API for docsearchd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearchd/internal/indexer"
	"github.com/fyrsmithlabs/docsearchd/internal/logging"
	"github.com/fyrsmithlabs/docsearchd/internal/rag"
	"github.com/fyrsmithlabs/docsearchd/internal/search"
	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

// HeaderUserID carries the authenticated user id, set by the upstream
// authentication layer. Authentication itself happens outside this service.
const HeaderUserID = "X-User-ID"

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the HTTP endpoints for search, RAG answers and indexing
// status.
type Server struct {
	echo     *echo.Echo
	searcher *search.Service
	answerer *rag.Orchestrator
	indexer  *indexer.Service
	store    vectorstore.Store
	logger   *logging.Logger
	config   *Config
}

// NewServer creates the HTTP server.
func NewServer(
	searcher *search.Service,
	answerer *rag.Orchestrator,
	idx *indexer.Service,
	store vectorstore.Store,
	logger *logging.Logger,
	cfg *Config,
) (*Server, error) {
	if searcher == nil || answerer == nil || idx == nil || store == nil {
		return nil, fmt.Errorf("searcher, answerer, indexer and store are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8085}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Correlation fields travel on the request context so every
			// log line downstream carries them.
			ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			if userID := c.Request().Header.Get(HeaderUserID); userID != "" {
				ctx = logging.WithUserID(ctx, userID)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		searcher: searcher,
		answerer: answerer,
		indexer:  idx,
		store:    store,
		logger:   logger.Named("httpapi"),
		config:   cfg,
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/answer", s.handleAnswer)
	v1.GET("/files/:id/index-status", s.handleIndexStatus)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vector_store"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", VectorStore: "ok"}
	if err := s.store.HealthCheck(c.Request().Context()); err != nil {
		// Degraded, not down: search responses degrade to empty rather
		// than failing, so the process stays serviceable.
		resp.VectorStore = "unreachable"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSearch(c echo.Context) error {
	userID := c.Request().Header.Get(HeaderUserID)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUserID+" header")
	}

	var req search.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	req.UserID = userID

	resp := s.searcher.Search(c.Request().Context(), req)
	return c.JSON(http.StatusOK, resp)
}

// AnswerRequest is the request body for POST /api/v1/answer.
type AnswerRequest struct {
	Query     string `json:"query"`
	ProjectID string `json:"project_id,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
}

func (s *Server) handleAnswer(c echo.Context) error {
	userID := c.Request().Header.Get(HeaderUserID)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUserID+" header")
	}

	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	scope := vectorstore.Scope{UserID: userID, ProjectID: req.ProjectID, MeetingID: req.MeetingID}
	answer, err := s.answerer.Answer(c.Request().Context(), req.Query, scope)
	if err != nil {
		s.logger.Error(c.Request().Context(), "answer generation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "answer generation failed")
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleIndexStatus(c echo.Context) error {
	if c.Request().Header.Get(HeaderUserID) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUserID+" header")
	}

	fileID := c.Param("id")
	status, err := s.indexer.Status(c.Request().Context(), fileID)
	if err != nil {
		s.logger.Error(c.Request().Context(), "status lookup failed",
			zap.String("file_id", fileID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "status unavailable")
	}
	return c.JSON(http.StatusOK, status)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
