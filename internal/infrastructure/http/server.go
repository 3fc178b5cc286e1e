// Package http exposes the engine over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// NewSessionID in a path asks for a fresh session.
const NewSessionID = "new"

// Ingester attaches documents to sessions.
type Ingester interface {
	Ingest(ctx context.Context, req entities.IngestRequest) (entities.IngestResult, error)
}

// Querier answers questions and produces summaries and comparisons.
type Querier interface {
	Ask(ctx context.Context, req entities.QueryRequest) (entities.Answer, error)
	Summarize(ctx context.Context, req entities.SummarizeRequest) (entities.Answer, error)
	Compare(ctx context.Context, req entities.CompareRequest) (entities.Answer, error)
}

// Sessions resets and reports sessions.
type Sessions interface {
	Reset(ctx context.Context, sessionID string) entities.ResetResult
	Status(ctx context.Context, sessionID string) entities.Status
}

// FileDecoder turns an uploaded file into records.
type FileDecoder interface {
	LoadBytes(ctx context.Context, name string, data []byte) ([]entities.Record, error)
	SupportedExtensions() []string
}

// Options tunes the HTTP layer.
type Options struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      float64 // requests per second per client IP, 0 disables
	RateBurst      int
	CORSOrigins    []string
	MaxUploadBytes int64
	Metrics        http.Handler // served on /metrics when set
}

// Server is the HTTP server for the document QA API.
type Server struct {
	echo     *echo.Echo
	ingest   Ingester
	query    Querier
	sessions Sessions
	decoder  FileDecoder
	opts     Options
	logger   *zap.Logger
}

// NewServer wires routes and middleware.
func NewServer(ingest Ingester, query Querier, sessions Sessions, decoder FileDecoder, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		echo:     echo.New(),
		ingest:   ingest,
		query:    query,
		sessions: sessions,
		decoder:  decoder,
		opts:     opts,
		logger:   logger,
	}
	s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	api := e.Group("/api")
	api.Use(middleware.BodyLimit(strconv.FormatInt(s.opts.MaxUploadBytes, 10)))
	if s.opts.RateLimit > 0 {
		burst := s.opts.RateBurst
		if burst <= 0 {
			burst = int(s.opts.RateLimit) + 1
		}
		store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.opts.RateLimit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		})
		api.Use(middleware.RateLimiter(store))
	}

	api.POST("/sessions/:id/documents", s.handleIngest)
	api.POST("/sessions/:id/reset", s.handleReset)
	api.GET("/sessions/:id/status", s.handleStatus)
	api.POST("/ask", s.handleAsk)
	api.POST("/summarize", s.handleSummarize)
	api.POST("/compare", s.handleCompare)
	api.GET("/formats", s.handleFormats)
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("addr", s.opts.Address))
		errCh <- s.echo.Start(s.opts.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

type ingestBody struct {
	Name    string            `json:"name"`
	Records []entities.Record `json:"records"`
}

func (s *Server) handleIngest(c echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == NewSessionID {
		sessionID = ""
	}
	ctx := c.Request().Context()

	req := entities.IngestRequest{SessionID: sessionID}
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot open upload")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
		}
		records, err := s.decoder.LoadBytes(ctx, fh.Filename, data)
		if err != nil {
			return err
		}
		req.DocumentName = fh.Filename
		req.Records = records
	} else {
		var body ingestBody
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expected multipart field \"file\" or JSON {name, records}")
		}
		req.DocumentName = body.Name
		req.Records = body.Records
	}

	res, err := s.ingest.Ingest(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleAsk(c echo.Context) error {
	var req entities.QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ans, err := s.query.Ask(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) handleSummarize(c echo.Context) error {
	var req entities.SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ans, err := s.query.Summarize(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) handleCompare(c echo.Context) error {
	var req entities.CompareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ans, err := s.query.Compare(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) handleReset(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sessions.Reset(c.Request().Context(), c.Param("id")))
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sessions.Status(c.Request().Context(), c.Param("id")))
}

func (s *Server) handleFormats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"extensions": s.decoder.SupportedExtensions()})
}

// handleError renders every failure as {"error": msg}.
func (s *Server) handleError(err error, c echo.Context) {
	code, msg := statusFor(err)
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Error(err),
	}
	if code >= 500 {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Info("request rejected", fields...)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]interface{}{"error": msg})
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	case errors.Is(err, entities.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, err.Error()
	case entities.IsInputError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entities.ErrDuplicateDocument):
		return http.StatusConflict, err.Error()
	case errors.Is(err, entities.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, entities.ErrGenerationTimeout.Error()
	case errors.Is(err, entities.ErrGenerationFailed):
		return http.StatusBadGateway, entities.ErrGenerationFailed.Error()
	case errors.Is(err, entities.ErrEmbeddingFailed):
		return http.StatusBadGateway, entities.ErrEmbeddingFailed.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
