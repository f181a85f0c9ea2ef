package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	vehicleshandler "bikerent/internal/vehicles/handler"
	"bikerent/pkg/config"
	"bikerent/pkg/contracts"
	"bikerent/pkg/kafka"
	"bikerent/pkg/metrics"
	"bikerent/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// publicReadPrefixes can be read without a bearer token.
var publicReadPrefixes = []string{"/api/v1/vehicles"}

type Application struct {
	cfg              *config.Config
	metrics          *metrics.Metrics
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	appHTTPHandler   http.Handler
	workers          []namedWorker
	closers          []namedCloser
}

type namedWorker struct {
	name   string
	worker contracts.Worker
}

type namedCloser struct {
	name  string
	close func() error
}

func NewApplication(cfg *config.Config, m *metrics.Metrics) *Application {
	return &Application{cfg: cfg, metrics: m}
}

func (a *Application) SetApp(appHandlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setAppHandler(appHandlers...)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(name string, w contracts.Worker) {
	a.workers = append(a.workers, namedWorker{name: name, worker: w})
}

// OnShutdown registers a resource closed after the HTTP server and workers
// have stopped, in registration order.
func (a *Application) OnShutdown(name string, close func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: close})
}

// Handler returns the fully assembled HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	vehicleshandler.NewHealthHandler(a.cfg.Client, a.cfg.Log).RegisterRoutes(healthRouter)
	healthRouter.Handler(http.MethodGet, "/metrics", a.metrics.Handler())

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers ...contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.UserOrIPKey,
		a.cfg.Log,
	)
	authenticator := middleware.NewAuthenticator(a.cfg.JWTSecret, a.cfg.Log)

	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = middleware.Idempotency(a.idempotencyStore)(appHTTPHandler)
	appHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHTTPHandler)
	appHTTPHandler = middleware.RateLimit(a.rateLimiter)(appHTTPHandler)
	appHTTPHandler = middleware.Authenticate(authenticator, middleware.PublicReads(publicReadPrefixes...))(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHTTPHandler)
	appHTTPHandler = middleware.RequestLogging(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.Recovery(a.cfg.Log)(appHTTPHandler)
	a.appHTTPHandler = appHTTPHandler
	a.cfg.Log.Info("Application endpoints configured with full security middleware stack",
		"public_reads", strings.Join(publicReadPrefixes, ","),
	)
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	var workersWG sync.WaitGroup
	for _, nw := range a.workers {
		workersWG.Add(1)
		go func(nw namedWorker) {
			defer workersWG.Done()
			a.cfg.Log.Info("Starting background worker", "worker", nw.name)
			err := nw.worker.Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
				a.cfg.Log.Error("Background worker stopped unexpectedly", "worker", nw.name, "error", err)
			}
		}(nw)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
		a.gracefulShutdown(&workersWG)
	}
}

func (a *Application) gracefulShutdown(workersWG *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	for _, nw := range a.workers {
		if err := nw.worker.Close(); err != nil {
			a.cfg.Log.Error("Failed to stop background worker", "worker", nw.name, "error", err)
		}
	}
	workersWG.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.cfg.Log.Error("Failed to close resource", "resource", c.name, "error", err)
		}
	}
	a.cfg.GracefulShutdown()

	a.cfg.Log.Info("Server stopped gracefully")
}
