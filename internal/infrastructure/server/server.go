package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/HomePanel/backend/internal/api/http"
	"github.com/GriffinCanCode/HomePanel/backend/internal/api/middleware"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/inventory"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/provision"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/shell"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/task"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/installer"
	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/terminal"
)

// taskSweepInterval is how often finished provisioning tasks are checked
// against their retention.
const taskSweepInterval = 10 * time.Minute

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	shell   *shell.Manager
	tasks   *task.Registry
	runner  *provision.Runner
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing HomePanel backend",
		zap.String("port", cfg.Server.Port),
		zap.String("shell_transport", cfg.Shell.Transport),
		zap.String("provision_dir", cfg.Provision.BaseDir),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("homepanel", logger.Component("tracing"))

	dialer, err := newDialer(cfg.Shell, logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	shellManager := shell.NewManager(dialer, shell.OptionsFromConfig(cfg.Shell), logger.Component("shell")).
		WithMetrics(metrics)

	runner, tasks, err := newRunner(cfg.Provision, logger, metrics)
	if err != nil {
		shellManager.Close()
		tracer.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := api.NewHandlers(shellManager, runner, logger.Component("api"))
	api.RegisterRoutes(router, handlers)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		shell:   shellManager,
		tasks:   tasks,
		runner:  runner,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

func newDialer(cfg config.ShellConfig, logger *logging.Logger) (terminal.Dialer, error) {
	if cfg.Transport == "local" {
		logger.Warn("Using local PTY shells, remote hosts are not reachable")
		return &terminal.LocalDialer{Shell: cfg.LocalShell, Logger: logger.Component("pty")}, nil
	}

	hostKeys, err := terminal.HostKeyCallback(cfg.KnownHosts, logger.Component("ssh"))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	dialer := &terminal.SSHDialer{
		Timeout:         cfg.ConnectTimeout,
		HostKeyCallback: hostKeys,
		Logger:          logger.Component("ssh"),
	}
	if cfg.UseSSHConfig {
		dialer.Resolver = terminal.NewHostResolver()
	}
	return dialer, nil
}

func newRunner(cfg config.ProvisionConfig, logger *logging.Logger, metrics *monitoring.Metrics) (*provision.Runner, *task.Registry, error) {
	catalog, err := provision.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load server catalog: %w", err)
	}
	store, err := inventory.Open(cfg.InventoryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open server inventory: %w", err)
	}

	downloads := installer.DefaultDownloaderConfig()
	downloads.Timeout = cfg.DownloadTimeout
	component := logger.Component("provision")

	tasks := task.NewRegistry(cfg.TaskRetention, component)
	runner := provision.NewRunner(provision.Deps{
		Tasks:      tasks,
		Inventory:  store,
		Catalog:    catalog,
		Downloader: installer.NewDownloader(downloads, component).WithMetrics(metrics),
		Extractor:  installer.NewExtractor(component),
		Commands:   installer.NewCommandRunner(cfg.CommandTimeout, component),
	}, provision.Options{
		BaseDir:    cfg.BaseDir,
		Locale:     cfg.Locale,
		DefaultRAM: cfg.DefaultRAM,
	}, component).WithMetrics(metrics)

	logger.Info("Provisioning ready",
		zap.Strings("server_types", provision.ServerTypes()),
		zap.Int("known_servers", len(store.List())),
	)
	return runner, tasks, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the background sweepers and serves HTTP until Shutdown.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.shell.Run(ctx, s.config.Shell.SweepInterval)
	}()
	go func() {
		defer s.wg.Done()
		s.tasks.Run(ctx, taskSweepInterval)
	}()

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every shell session and waits
// for running installations to settle.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down http server: %w", shutdownErr)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.shell.Close()

	done := make(chan struct{})
	go func() {
		s.runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Installations still running at shutdown", zap.Int("active", s.runner.ActiveTasks()))
	}

	s.tracer.Close()
	s.logger.Sync()
	return err
}
