package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/smartess/internal/config"
	"github.com/berfenger/smartess/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options are the optional backends of the HTTP API. A nil Recorder disables
// /api/history and a nil Gatherer disables /metrics.
type Options struct {
	Recorder port.DispatchRecorder
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	recorder    port.DispatchRecorder
	gatherer    prometheus.Gatherer
	logger      *zap.Logger
	clock       func() time.Time
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, opts Options) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, opts)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		rootContext: rootContext,
		masterActor: masterActor,
		recorder:    opts.Recorder,
		gatherer:    opts.Gatherer,
		logger:      logger.With(zap.String("component", "http")),
		clock:       time.Now,
	}
}
