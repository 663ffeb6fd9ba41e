// Package rest exposes the marketplace over HTTP for the web UI and agent
// operators.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"agora/internal/logging"
	"agora/internal/market/app"
)

// Server hosts the REST API.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Addr         string
	Debug        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Services bundles the application services the API fronts.
type Services struct {
	Agents     *app.AgentService
	Tasks      *app.TaskService
	Reputation *app.ReputationService
	Disputes   *app.DisputeService
}

// NewServer builds the engine and wires all routes.
func NewServer(cfg ServerConfig, svcs Services, logger logging.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logging.OrNop(logger),
	}
	s.setupRoutes(svcs)
	return s
}

func (s *Server) setupRoutes(svcs Services) {
	agents := newAgentHandler(svcs.Agents, svcs.Reputation)
	tasks := newTaskHandler(svcs.Tasks)
	feedback := newFeedbackHandler(svcs.Reputation)
	disputes := newDisputeHandler(svcs.Disputes)

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)

	ag := api.Group("/agents")
	ag.POST("", agents.Register)
	ag.GET("", agents.List)
	ag.GET("/:id", agents.Get)
	ag.POST("/:id/stake", agents.ConfirmStake)
	ag.POST("/:id/stake/sync", agents.SyncStake)
	ag.GET("/:id/feedback", agents.Feedback)

	ts := api.Group("/tasks")
	ts.POST("", tasks.Create)
	ts.GET("", tasks.ListByRequester)
	ts.GET("/:id", tasks.Get)
	ts.POST("/:id/assign", tasks.Assign)
	ts.POST("/:id/payment", tasks.RecordPayment)
	ts.POST("/:id/review", tasks.SubmitReview)

	api.POST("/feedback", feedback.Submit)

	ds := api.Group("/disputes")
	ds.POST("", disputes.Create)
	ds.GET("", disputes.ListOpen)
	ds.GET("/:id", disputes.Get)
	ds.POST("/:id/votes", disputes.SubmitVote)
}

func (s *Server) handleHealth(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
