package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/controller"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	errx "github.com/finpal-core-poc-v1/assistant/internal/core/error"
	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

type Config struct {
	Addr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	AllowedOrigins []string      `envconfig:"HTTP_ALLOWED_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`
	PingInterval   time.Duration `envconfig:"HTTP_WS_PING_INTERVAL" default:"30s"`
}

// Controller is the part of the turn controller the HTTP surface drives.
type Controller interface {
	Messages() []model.Message
	Phase() model.TurnPhase
	Preferences() controller.Preferences
	SetPreferences(controller.Preferences) controller.Preferences
	QuotaRemaining(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	SubmitTurn(ctx context.Context, input string) error
	StartListening(ctx context.Context) error
	StopListening()
	StopSpeaking()
	Subscribe() (<-chan controller.Event, func())
}

type Server struct {
	cfg      Config
	ctrl     Controller
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, ctrl Controller) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		log:  logx.Component("api"),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	return s
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(s.requestLogger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api")
	api.GET("/conversation", s.handleConversation)
	api.DELETE("/conversation", s.handleReset)
	api.POST("/turns", s.handleTurn)
	api.POST("/listen", s.handleStartListening)
	api.DELETE("/listen", s.handleStopListening)
	api.DELETE("/speech", s.handleStopSpeaking)
	api.PUT("/preferences", s.handlePreferences)
	api.GET("/events", s.handleEvents)
	return engine
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type conversationResponse struct {
	Messages       []model.Message        `json:"messages"`
	Phase          model.TurnPhase        `json:"phase"`
	Preferences    controller.Preferences `json:"preferences"`
	QuotaRemaining *int                   `json:"quota_remaining,omitempty"`
}

func (s *Server) conversation(ctx context.Context) conversationResponse {
	resp := conversationResponse{
		Messages:    s.ctrl.Messages(),
		Phase:       s.ctrl.Phase(),
		Preferences: s.ctrl.Preferences(),
	}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}
	if left, err := s.ctrl.QuotaRemaining(ctx); err != nil {
		s.log.Warn().Err(err).Msg("quota lookup failed")
	} else {
		resp.QuotaRemaining = &left
	}
	return resp
}

func (s *Server) handleConversation(c *gin.Context) {
	c.JSON(http.StatusOK, s.conversation(c.Request.Context()))
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.ctrl.Reset(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type turnRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.ctrl.SubmitTurn(c.Request.Context(), req.Input); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.conversation(c.Request.Context()))
}

// handleStartListening starts a capture session in the background; results
// arrive on the event stream.
func (s *Server) handleStartListening(c *gin.Context) {
	switch s.ctrl.Phase() {
	case model.PhaseListening:
		s.respondError(c, controller.ErrAlreadyListening)
		return
	case model.PhaseAwaitingResponse:
		s.respondError(c, controller.ErrTurnInFlight)
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := s.ctrl.StartListening(ctx); err != nil {
			s.log.Warn().Err(err).Msg("listen request rejected")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "listening"})
}

func (s *Server) handleStopListening(c *gin.Context) {
	s.ctrl.StopListening()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStopSpeaking(c *gin.Context) {
	s.ctrl.StopSpeaking()
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePreferences(c *gin.Context) {
	var req controller.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.JSON(http.StatusOK, s.ctrl.SetPreferences(req))
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	msg := errx.SystemErrorMessage
	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg, "kind": errx.KindOf(err)})
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
