package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/glasspane/glasspane/internal/api/http"
	"github.com/glasspane/glasspane/internal/api/middleware"
	"github.com/glasspane/glasspane/internal/browse"
	"github.com/glasspane/glasspane/internal/config"
	"github.com/glasspane/glasspane/internal/events"
	"github.com/glasspane/glasspane/internal/httpx"
	"github.com/glasspane/glasspane/internal/infrastructure/monitoring"
	"github.com/glasspane/glasspane/internal/infrastructure/tracing"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/policy"
	"github.com/glasspane/glasspane/internal/ws"
)

// Server wires the gateway: policy table, guarded client, browsing surface,
// event stream, and the HTTP API over all of it.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	bus      *events.Bus
	table    *policy.Table
	sessions *browse.Manager
}

// verdictFanout delivers wire-path classifications to every sink.
type verdictFanout []httpx.VerdictReporter

func (f verdictFanout) RequestClassified(v policy.Verdict, method, url string) {
	for _, r := range f {
		r.RequestClassified(v, method, url)
	}
}

func (f verdictFanout) UpstreamResponse(method string, status int) {
	for _, r := range f {
		if ur, ok := r.(httpx.UpstreamReporter); ok {
			ur.UpstreamResponse(method, status)
		}
	}
}

// enforcementFanout delivers enforcement events to every sink.
type enforcementFanout struct {
	metrics *monitoring.Metrics
	bus     *events.Bus
}

func (f enforcementFanout) EnforcementPass(hidden, disabled int) {
	f.metrics.EnforcementPass(hidden, disabled)
	f.bus.EnforcementPass(hidden, disabled)
}

func (f enforcementFanout) ClickIntercepted(selector string) {
	f.metrics.ClickIntercepted(selector)
	f.bus.ClickIntercepted(selector)
}

// NewServer creates a server instance from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing Glasspane gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	table, err := loadTable(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Policy table loaded",
		zap.String("version", table.Version()),
		zap.Int("graphql_operations", len(table.GraphQLOperations())),
		zap.Int("rest_patterns", len(table.RESTPatterns())),
		zap.Int("controls", len(table.Controls())),
	)

	metrics := monitoring.NewMetrics()
	bus := events.NewBus()
	tracer := tracing.New("gateway", logger.Logger)

	classifier := policy.NewClassifier(table, logger, cfg.Policy.Debug)
	client := httpx.NewClient(cfg.Upstream, classifier, verdictFanout{metrics, bus})

	sessions := browse.NewManager(cfg.Upstream.UserAgent)
	navigator, err := browse.NewNavigator(client, cfg.Upstream.BaseURL, table, logger, enforcementFanout{metrics: metrics, bus: bus})
	if err != nil {
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(sessions, navigator, table, classifier, client, logger)
	wsHandler := ws.NewHandler(bus, metrics, logger)

	router.GET("/", handlers.Health)
	router.GET("/health", handlers.Health)

	// Browsing surface
	router.POST("/browse/navigate", handlers.Navigate)
	router.GET("/browse/navigate", handlers.Navigate)
	router.GET("/browse/asset", handlers.Asset)
	router.POST("/browse/form", handlers.Form)
	router.GET("/browse/form", handlers.Form)
	router.POST("/browse/script", handlers.Script)
	router.GET("/browse/session/:id", handlers.Session)
	router.DELETE("/browse/session/:id", handlers.DeleteSession)

	// Policy surface
	router.GET("/policy", handlers.Policy)
	router.POST("/policy/classify", handlers.Classify)

	// Observability
	router.GET("/events", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		bus:      bus,
		table:    table,
		sessions: sessions,
	}, nil
}

// loadTable builds the policy table: YAML when configured, otherwise the
// built-in taxonomy.
func loadTable(cfg *config.Config, logger *logging.Logger) (*policy.Table, error) {
	if cfg.Policy.TablePath == "" {
		return policy.Default(), nil
	}
	table, err := policy.Load(cfg.Policy.TablePath)
	if err != nil {
		return nil, fmt.Errorf("load policy table %s: %w", cfg.Policy.TablePath, err)
	}
	logger.Info("Loaded policy table from file", zap.String("path", cfg.Policy.TablePath))
	return table, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	defer s.logger.Sync()

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
