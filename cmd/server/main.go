package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parcelhub/config"
	"parcelhub/db"
	"parcelhub/db/mongo"
	"parcelhub/db/postgres"
	"parcelhub/handlers"
	"parcelhub/logger"
	"parcelhub/repository"
	"parcelhub/routes"
	"parcelhub/service"
	"parcelhub/utils"
)

func main() {
	// Load config from .env and the environment
	cfg, dotenv, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	if !dotenv {
		log.Debug("no .env file loaded, using process environment")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	var (
		conn      db.DB
		packages  repository.PackageRepository
		logistics repository.LogisticsRepository
	)

	switch db.DBType(cfg.DBType) {
	case db.Postgres:
		if err := db.RunMigrations(cfg.PostgresURL, cfg.MigrationsPath, log); err != nil {
			return err
		}
		pg := postgres.NewPostgresDB(cfg.PostgresURL)
		if err := pg.Connect(); err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		conn = pg
		packages = repository.NewPostgresPackageRepo(pg.Conn)
		logistics = repository.NewPostgresLogisticsRepo(pg.Conn)

	case db.Mongo:
		mg := mongo.NewMongoDB(cfg.MongoURL, cfg.MongoDatabase)
		if err := mg.Connect(); err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		conn = mg
		packages = repository.NewMongoPackageRepo(mg.Client, cfg.MongoDatabase)
		logistics = repository.NewMongoLogisticsRepo(mg.Client, cfg.MongoDatabase)

	case db.Memory:
		store := repository.NewMemoryStore()
		packages, logistics = store, store
		log.Warn("using in-memory store; data is lost on restart")

	default:
		return fmt.Errorf("DB_TYPE %q not supported", cfg.DBType)
	}
	if conn != nil {
		defer func() {
			if err := conn.Disconnect(); err != nil {
				log.Warn("disconnect failed", zap.Error(err))
			}
		}()
	}

	svc := service.New(packages, logistics, log.Named("service"), cfg.MutationConcurrency)

	labels := &handlers.LabelHandler{
		Service:  svc,
		Renderer: utils.ChromeLabelRenderer{},
		SavePath: cfg.LabelDir,
		Log:      log.Named("labels"),
	}
	if cfg.R2.Enabled() {
		up, err := utils.NewR2Uploader(context.Background(), cfg.R2)
		if err != nil {
			return err
		}
		labels.Uploader = up
	}

	mux := http.NewServeMux()
	httpLog := log.Named("http")
	routes.SetupRoutes(mux, httpLog, routes.Handlers{
		Packages: &handlers.PackageHandler{Service: svc, Log: httpLog},
		Batches:  &handlers.BatchHandler{Service: svc, Log: httpLog},
		Agencies: &handlers.AgencyHandler{Service: svc, Log: httpLog},
		Labels:   labels,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("port", cfg.Port), zap.String("db_type", cfg.DBType))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
