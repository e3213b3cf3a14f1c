package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartlift_monitor/internal/config"
	"smartlift_monitor/internal/handlers"
	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/repository"
	"smartlift_monitor/internal/repository/db"
	"smartlift_monitor/internal/scheduler"
	"smartlift_monitor/internal/server"
	"smartlift_monitor/internal/service"
	"smartlift_monitor/internal/store"
	"smartlift_monitor/internal/stream"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default: configs/config.yml)")
	flag.Parse()

	// load config.yml + SMARTLIFT_* env
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	st := store.New()
	m := metrics.New()
	sched := scheduler.New(st, scheduler.Config{
		BatchWindow:  cfg.Sync.BatchWindow,
		MinRenderGap: cfg.Sync.MinRenderGap,
	}, scheduler.WithFlushHook(m.RecordFlush))

	services := service.NewService(repos, st, service.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		Command:   commanderOptions(cfg),
		Simulator: simulatorOptions(cfg),
		Metrics:   m,
		Log:       log.Named("service"),
	})
	if !services.Enabled() {
		log.Warnw("auth.jwt_secret not set; /api/v1 is open")
	}

	client := stream.NewClient(stream.Options{
		URL:          cfg.Stream.URL,
		Token:        cfg.Stream.Token,
		InitialDelay: cfg.Stream.Reconnect.InitialDelay,
		MaxDelay:     cfg.Stream.Reconnect.MaxDelay,
	}, log.Named("stream"))
	liftSync := service.NewLiftSync(client, sched, st, repos.EventRepo, m, log.Named("sync")).
		WithLiftIDs(cfg.Stream.LiftIDs)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start simulator (via composed service)
	if services.Simulator != nil {
		go services.Simulator.Run(ctx, cfg.Simulator.Tick)
	}

	// start HTTP server
	srv := server.New(server.Timeouts{
		ReadHeader: cfg.Server.ReadHeaderTimeout,
		Write:      cfg.Server.WriteTimeout,
	})
	runHTTPServer(srv, cfg.Port, handlers.NewHandler(services, m, log.Named("http")), log)

	if err := liftSync.Start(ctx); err != nil {
		log.Fatalw("failed to start lift sync", "err", err)
	}
	log.Infow("smartlift monitor started", "port", cfg.Port, "stream", cfg.Stream.URL, "simulator", services.Simulator != nil)

	// graceful shutdown
	waitForShutdown(cancel, liftSync, srv, cfg.Server.ShutdownTimeout, log)
}

func commanderOptions(cfg *config.Config) service.CommanderOptions {
	return service.CommanderOptions{
		URL:     cfg.Command.URL,
		Token:   cfg.Command.Token,
		Timeout: cfg.Command.Timeout,
	}
}

func simulatorOptions(cfg *config.Config) *service.SimulatorOptions {
	if !cfg.Simulator.Enabled {
		return nil
	}
	return &service.SimulatorOptions{
		Lifts:  cfg.Simulator.Lifts,
		Floors: cfg.Simulator.Floors,
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, liftSync *service.LiftSync, srv *server.Server, timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stream first, then the scheduler timers, then background goroutines
	liftSync.Stop()
	cancel()

	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	_ = log.Sync()
}
