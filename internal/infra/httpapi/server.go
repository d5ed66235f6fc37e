// Package httpapi exposes chat sessions over HTTP and streams browser audio
// over WebSocket.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"speaksmart/internal/application"
	"speaksmart/internal/domain"
)

type Config struct {
	Addr          string
	AuthToken     string
	RateLimit     int
	RateWindow    time.Duration
	MaxAudioBytes int
	// Format applies to raw PCM bodies that carry no sample_rate or channels
	// query parameters.
	Format application.AudioFormat
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RateLimit == 0 {
		c.RateLimit = 30
	}
	if c.RateWindow == 0 {
		c.RateWindow = time.Minute
	}
	if c.MaxAudioBytes == 0 {
		c.MaxAudioBytes = 10 * 1024 * 1024
	}
	if c.Format.SampleRate == 0 {
		c.Format = application.DefaultAudioFormat()
	}
}

type Server struct {
	cfg         Config
	assistant   *application.Assistant
	app         *fiber.App
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

func NewServer(cfg Config, assistant *application.Assistant, logger *slog.Logger) *Server {
	cfg.setDefaults()

	s := &Server{
		cfg:         cfg,
		assistant:   assistant,
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:      logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             cfg.MaxAudioBytes,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          s.handleError,
	})
	app.Use(s.logRequests)

	// No rate limiting on health check
	app.Get("/health", s.handleHealth)

	api := app.Group("/sessions", s.authorize, s.rateLimiter.Middleware())
	api.Post("/", s.handleCreate)
	api.Get("/:id", s.handleGet)
	api.Delete("/:id", s.handleDelete)
	api.Post("/:id/messages", s.handleMessage)
	api.Post("/:id/audio", s.handleAudio)
	api.Post("/:id/reply", s.handleReply)
	api.Delete("/:id/pending", s.handleDiscard)

	api.Use("/:id/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/:id/stream", websocket.New(s.handleStream))

	s.app = app
	return s
}

// App returns the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("HTTP server starting", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// Let the error handler write the final status before logging it.
		if handlerErr := s.handleError(c, err); handlerErr != nil {
			return handlerErr
		}
	}

	s.logger.Info("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return nil
}

func (s *Server) authorize(c *fiber.Ctx) error {
	if s.cfg.AuthToken == "" {
		return c.Next()
	}

	// Check header first
	token := c.Get("X-Auth-Token")
	// If not in header, check query parameter
	if token == "" {
		token = c.Query("token")
	}

	if token != s.cfg.AuthToken {
		s.logger.Warn("unauthorized request", "remote_addr", c.IP(), "path", c.Path())
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(healthResponse{Status: "ok", Sessions: s.assistant.Sessions().Len()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var genErr *domain.GenerationError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnintelligibleAudio):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &genErr):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
