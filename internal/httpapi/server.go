package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/auth"
	"github.com/S4DIB/news-hud-sub001/internal/db"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/ingest"
	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/pipeline"
	payloadschema "github.com/S4DIB/news-hud-sub001/schema"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200

	defaultBatchBodyLimit = "4M"
	healthPingTimeout     = 2 * time.Second
)

// ClusterReader is the read side the API serves from. *db.Pool implements it.
type ClusterReader interface {
	ListClusters(ctx context.Context, opts db.ClusterListOptions) ([]db.ClusterSummary, error)
	GetCluster(ctx context.Context, clusterUUID string) (*db.ClusterDetail, error)
	QueryEngineStats(ctx context.Context) (*db.EngineStats, error)
	Ping(ctx context.Context) error
}

// BatchProcessor runs one dedup batch. *pipeline.Service implements it.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, articles []news.Article) (pipeline.Result, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// IngestTokenHash is the bcrypt hash guarding POST /api/v1/batches. The
	// route is not registered when it is empty.
	IngestTokenHash    string
	CORSAllowedOrigins []string
	BatchBodyLimit     string
}

type Server struct {
	reader  ClusterReader
	batches BatchProcessor
	logger  zerolog.Logger
	opts    Options
}

type nearDuplicateItem struct {
	ArticleID  string  `json:"article_id"`
	OriginalID string  `json:"original_id,omitempty"`
	Similarity float64 `json:"similarity"`
	Reasoning  string  `json:"reasoning"`
}

type batchResponse struct {
	ArticlesIn        int                 `json:"articles_in"`
	DuplicatesRemoved int                 `json:"duplicates_removed"`
	ExactDuplicates   int                 `json:"exact_duplicates"`
	NearDuplicates    []nearDuplicateItem `json:"near_duplicates"`
	ClustersFormed    int                 `json:"clusters_formed"`
	ClustersTouched   []string            `json:"clusters_touched"`
	Unclustered       []string            `json:"unclustered"`
	Fallback          bool                `json:"fallback"`
	FallbackReason    string              `json:"fallback_reason,omitempty"`
}

func NewServer(reader ClusterReader, batches BatchProcessor, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	bodyLimit := strings.TrimSpace(opts.BatchBodyLimit)
	if bodyLimit == "" {
		bodyLimit = defaultBatchBodyLimit
	}

	return &Server{
		reader:  reader,
		batches: batches,
		logger:  logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			IngestTokenHash:    strings.TrimSpace(opts.IngestTokenHash),
			CORSAllowedOrigins: origins,
			BatchBodyLimit:     bodyLimit,
		},
	}
}

// Handler builds the echo instance with middleware and routes.
func (s *Server) Handler() (*echo.Echo, error) {
	if s == nil || s.reader == nil {
		return nil, fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/clusters", s.handleClusters)
	api.GET("/clusters/:cluster_uuid", s.handleClusterDetail)

	if s.batches != nil && s.opts.IngestTokenHash != "" {
		api.POST("/batches", s.handleCreateBatch, middleware.BodyLimit(s.opts.BatchBodyLimit))
	} else {
		s.logger.Info().Msg("batch ingestion endpoint disabled; INGEST_TOKEN_HASH is not set")
	}

	return e, nil
}

func (s *Server) Start(ctx context.Context) error {
	e, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("news-hud api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("news-hud api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check ping failed")
		return errorWithStatus(c, http.StatusServiceUnavailable, "Database unavailable")
	}
	return success(c, map[string]any{
		"service": "news-hud",
		"time":    globaltime.UTC(),
		"ingest":  s.batches != nil && s.opts.IngestTokenHash != "",
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.reader.QueryEngineStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleClusters(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}
	since, err := parseTimeFilter(c.QueryParam("since"))
	if err != nil {
		return failValidation(c, map[string]string{"since": "must be RFC3339 or YYYY-MM-DD"})
	}

	status := strings.TrimSpace(strings.ToLower(c.QueryParam("status")))
	switch status {
	case "", "all", db.ClusterStatusActive, db.ClusterStatusRetired:
	default:
		return failValidation(c, map[string]string{"status": "must be one of active, retired, all"})
	}
	sort := strings.TrimSpace(strings.ToLower(c.QueryParam("sort")))
	if !db.IsClusterSort(sort) {
		return failValidation(c, map[string]string{"sort": "must be one of updated, created, score, velocity"})
	}

	opts := db.ClusterListOptions{
		Topic:  strings.TrimSpace(c.QueryParam("topic")),
		Status: status,
		Sort:   sort,
		Limit:  pageSize + 1,
		Offset: (page - 1) * pageSize,
	}
	if since != nil {
		opts.Since = *since
	}

	rows, err := s.reader.ListClusters(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("query clusters failed")
		return internalError(c, "Failed to load clusters")
	}
	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	return success(c, map[string]any{
		"items": rows,
		"pagination": map[string]any{
			"page":      page,
			"page_size": pageSize,
			"has_more":  hasMore,
		},
		"filters": map[string]any{
			"topic":  opts.Topic,
			"status": opts.Status,
			"sort":   opts.Sort,
			"since":  since,
		},
	})
}

func (s *Server) handleClusterDetail(c echo.Context) error {
	raw := strings.TrimSpace(c.Param("cluster_uuid"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return failValidation(c, map[string]string{"cluster_uuid": "must be a UUID"})
	}

	detail, err := s.reader.GetCluster(c.Request().Context(), id.String())
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Cluster not found")
		}
		s.logger.Error().Err(err).Str("cluster_uuid", raw).Msg("query cluster detail failed")
		return internalError(c, "Failed to load cluster")
	}
	return success(c, detail)
}

func (s *Server) handleCreateBatch(c echo.Context) error {
	token, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok || !auth.VerifyToken(token, s.opts.IngestTokenHash) {
		return failUnauthorized(c)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	payloads, err := payloadschema.ValidateBatchPayload(json.RawMessage(body))
	if err != nil {
		return failValidation(c, map[string]string{"articles": err.Error()})
	}
	articles, err := ingest.FromPayloads(payloads)
	if err != nil {
		return failValidation(c, map[string]string{"articles": err.Error()})
	}

	result, err := s.batches.ProcessBatch(c.Request().Context(), articles)
	if err != nil {
		s.logger.Error().Err(err).Int("articles", len(articles)).Msg("process batch failed")
		return internalError(c, "Failed to process batch")
	}
	return success(c, newBatchResponse(len(articles), result))
}

func newBatchResponse(articlesIn int, result pipeline.Result) batchResponse {
	resp := batchResponse{
		ArticlesIn:        articlesIn,
		DuplicatesRemoved: result.DuplicatesRemoved,
		ExactDuplicates:   result.ExactDuplicates,
		NearDuplicates:    make([]nearDuplicateItem, 0, len(result.NearDuplicates)),
		ClustersFormed:    result.ClustersFormed,
		ClustersTouched:   append([]string{}, result.Touched...),
		Unclustered:       make([]string, 0, len(result.Unclustered)),
		Fallback:          result.Fallback,
	}
	for _, d := range result.NearDuplicates {
		item := nearDuplicateItem{
			ArticleID:  d.Article.ID,
			Similarity: d.Similarity,
			Reasoning:  d.Reasoning,
		}
		if d.Original != nil {
			item.OriginalID = d.Original.ID
		}
		resp.NearDuplicates = append(resp.NearDuplicates, item)
	}
	for _, a := range result.Unclustered {
		resp.Unclustered = append(resp.Unclustered, a.ID)
	}
	if result.Err != nil {
		resp.FallbackReason = result.Err.Error()
	}
	return resp
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseTimeFilter(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}

	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		utc := day.UTC()
		return &utc, nil
	}

	return nil, fmt.Errorf("invalid time format")
}
