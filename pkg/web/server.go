// Package web is the HTTP shim around the pipeline: session folders,
// uploads, segment detection, calibration, and asynchronous warp runs with
// progress streamed over a websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/gaze"
	"github.com/teslashibe/go-gazewarp/pkg/hub"
	"github.com/teslashibe/go-gazewarp/pkg/pipeline"
	"github.com/teslashibe/go-gazewarp/pkg/store"
	"github.com/teslashibe/go-gazewarp/pkg/vision"
)

// Config holds server settings.
type Config struct {
	Port string
	// SessionsDir holds one directory per session.
	SessionsDir string
	Workers     int
	MaxGap      int
	Logger      *slog.Logger
}

// Server serves the API.
type Server struct {
	app    *fiber.App
	cfg    Config
	store  *store.Store
	hub    *hub.Hub
	logger *slog.Logger

	// Pipeline entry points. Tests replace them.
	Probe     func(path string) (float64, int, error)
	Detect    func(path, light, head, media string, opts ...pipeline.Option) (*pipeline.Detection, error)
	Calibrate func(f pipeline.CalibrationFiles, points []fiducial.Point, fc vision.FrameConfig) (*calibration.Reference, []fiducial.Point, error)
	WarpFiles func(ctx context.Context, f pipeline.Files, opts ...pipeline.Option) ([]string, []gaze.Result, error)

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// NewServer wires routes against st. Call Start to listen.
func NewServer(cfg Config, st *store.Store) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		store:     st,
		hub:       hub.New("progress", cfg.Logger),
		logger:    cfg.Logger.With("component", "web"),
		Probe:     pipeline.ProbeVideo,
		Detect:    pipeline.DetectSegmentsFile,
		Calibrate: pipeline.CalibrateFile,
		WarpFiles: pipeline.WarpFiles,
		ctx:       ctx,
		cancel:    cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "gazewarp",
		DisableStartupMessage: true,
		BodyLimit:             1 << 30,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Post("/sessions/:id/upload/:kind", s.handleUpload)
	api.Post("/sessions/:id/detect_segments", s.handleDetectSegments)
	api.Post("/sessions/:id/submit_segments", s.handleSubmitSegments)
	api.Post("/sessions/:id/frame_config", s.handleFrameConfig)
	api.Post("/sessions/:id/warp", s.handleWarp)
	api.Get("/sessions/:id/results/:file", s.handleResult)
	api.Get("/runs/:id", s.handleGetRun)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress", websocket.New(s.handleProgressWS))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the progress hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Start runs the hub and listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return err
	}
	go s.hub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ":"+s.cfg.Port, "sessions_dir", s.cfg.SessionsDir)
		errc <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.cancel()
		s.runs.Wait()
		return s.app.Shutdown()
	}
}

// Wait blocks until every background warp run has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) sessionsDir() string {
	return s.cfg.SessionsDir
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	}
	if code >= 500 {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "ws_clients": s.hub.ClientCount()})
}

// handleProgressWS subscribes to ?topic=<run id>, or everything when empty.
func (s *Server) handleProgressWS(conn *websocket.Conn) {
	client := hub.NewClient(s.hub, conn, conn.Query("topic"))
	client.Run()
}
