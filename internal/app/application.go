package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"bustogether/internal/api"
	"bustogether/internal/clock"
	"bustogether/internal/config"
	"bustogether/internal/database"
	"bustogether/internal/gateway"
	"bustogether/internal/hub"
	"bustogether/internal/moderation"
	"bustogether/internal/observability"
	"bustogether/internal/scheduler"
	"bustogether/internal/session"
	"bustogether/internal/websocket"
	pkgdatabase "bustogether/pkg/database"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	store      *session.Store
	registry   *websocket.Registry
	gateway    *gateway.Gateway
	messageHub *hub.Hub
	scheduler  *scheduler.Scheduler
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener

	cancel context.CancelFunc
	logger *slog.Logger
}

// Option customizes construction; tests use it to drive time
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock replaces the system clock
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Database → Store → Registry → Gateway → Hub → Scheduler → API → HTTP
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	observability.SetLevel(cfg.LogLevel)

	o := options{clock: &clock.DefaultClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	// STEP 1: Route and schedule records
	dbManager, err := database.NewManager(DatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 2: Live session state
	store := session.NewStore(o.clock, loc)

	// STEP 3: Transport registry
	registry := websocket.NewRegistry()

	// STEP 4: Gateway with moderation and rate limits
	pipeline := moderation.NewPipeline(moderation.Config{
		MaxLength:       cfg.Chat.MaxMessageLength,
		BlockList:       cfg.Moderation.BlockList,
		UsernameScripts: cfg.Moderation.UsernameScripts,
	})
	limits := gateway.NewRateLimiter(o.clock, cfg.Chat.MessageCooldown, cfg.Chat.JoinAttemptsPerMinute, cfg.Chat.ReportsPerMinute)
	gw := gateway.New(store, registry, pipeline, limits, gateway.Config{
		UsernameMinLength:     cfg.Chat.UsernameMinLength,
		UsernameMaxLength:     cfg.Chat.UsernameMaxLength,
		KickThreshold:         cfg.Moderation.KickThreshold,
		ReportDeleteThreshold: cfg.Moderation.ReportDeleteThreshold,
	})

	// STEP 5: Ordered dispatch into the gateway
	messageHub := hub.NewHub(gw, 1000)

	// STEP 6: Window scheduler
	sched := scheduler.New(dbManager, store, registry, o.clock, scheduler.Config{
		Interval: cfg.Scheduler.Interval,
		Location: loc,
	})

	// STEP 7: HTTP surface with the WebSocket endpoint mounted
	gin.SetMode(gin.ReleaseMode)
	apiServer := api.NewServer(api.Dependencies{
		Repository:  dbManager,
		Store:       store,
		Closer:      sched,
		Connections: registry,
		AdminToken:  cfg.Admin.Token,
	})
	wsHandler := websocket.NewHandler(registry, messageHub, *cfg.WebSocket)
	apiServer.Mount("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		store:      store,
		registry:   registry,
		gateway:    gw,
		messageHub: messageHub,
		scheduler:  sched,
		apiServer:  apiServer,
		httpServer: httpServer,
		logger:     observability.WithComponent("app"),
	}, nil
}

// DatabaseConfig derives the SQLite settings from the application config
func DatabaseConfig(cfg *config.Config) *pkgdatabase.Config {
	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Database.Path
	if cfg.Database.Timeout > 0 {
		dbConfig.ConnMaxIdleTime = cfg.Database.Timeout
	}
	return dbConfig
}

// Start begins application execution
// Hub first so requests have somewhere to go, then the scheduler, then the listener
func (app *Application) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	if err := app.messageHub.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	if err := app.scheduler.Start(runCtx); err != nil {
		_ = app.messageHub.Stop()
		cancel()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		app.scheduler.Stop()
		_ = app.messageHub.Stop()
		cancel()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		_ = app.Stop(context.Background())
		return ctx.Err()
	default:
	}

	app.logger.Info("bustogether started", "addr", listener.Addr().String(), "timezone", app.config.Scheduler.Timezone)
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → Sockets → Scheduler → Hub → Database
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", "error", err)
	}

	// Hijacked WebSocket connections are not tracked by Shutdown
	if n := app.registry.CloseAll(); n > 0 {
		app.logger.Info("closed open connections", "connections", n)
	}

	app.scheduler.Stop()

	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		app.logger.Warn("message hub shutdown error", "error", err)
	}
	if app.cancel != nil {
		app.cancel()
	}

	if err := app.dbManager.Close(); err != nil {
		app.logger.Warn("database shutdown error", "error", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}

// Addr returns the bound listen address once started, else the configured one
func (app *Application) Addr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Scheduler exposes the scheduler so callers can trigger an immediate tick
func (app *Application) Scheduler() *scheduler.Scheduler {
	return app.scheduler
}

// Repository exposes the record store
func (app *Application) Repository() *database.Manager {
	return app.dbManager
}

// Connections exposes the transport registry
func (app *Application) Connections() *websocket.Registry {
	return app.registry
}

// Store exposes the live session store
func (app *Application) Store() *session.Store {
	return app.store
}
