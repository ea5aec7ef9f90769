// cmd/server/main.go
package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"google.golang.org/grpc"

	"github.com/gurkanbulca/taskdesk/internal/config"
	"github.com/gurkanbulca/taskdesk/internal/database"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/internal/service"
	"github.com/gurkanbulca/taskdesk/internal/xmlschema"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	if envErr != nil {
		log.Debug("no .env file found")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	validator, err := xmlschema.New()
	if err != nil {
		return fmt.Errorf("compile schemas: %w", err)
	}

	db, err := database.NewXMLDatabase(database.Config{
		Fs:        afero.NewOsFs(),
		Dir:       cfg.Storage.DataDir,
		Validator: validator,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	passwords := auth.NewPasswordManager(cfg.Security.MinPasswordLength, cfg.Security.BcryptCost)
	users := repository.NewUserRepository(db, passwords, log.With("component", "users"))
	tasks := repository.NewTaskRepository(db, db, repository.TaskOptions{
		StrictReferences:  cfg.Storage.StrictReferences,
		StrictTransitions: cfg.Storage.StrictTransitions,
	}, log.With("component", "tasks"))

	tokenManager := auth.NewTokenManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenDuration,
		cfg.JWT.RefreshTokenDuration,
	)

	grpcServer, healthServer, err := service.NewGRPCServer(service.Dependencies{
		Users:        users,
		Tasks:        tasks,
		TokenManager: tokenManager,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Load both files off the request path. A kind that fails to load stays
	// readable as empty and rejects writes, so the server still reports ready.
	go func() {
		if err := db.Warm(); err != nil {
			log.Warn("store loaded with errors", "error", err)
		}
		for _, st := range db.Status() {
			log.Info("store kind", "kind", st.Kind, "path", st.Path, "ready", st.Ready, "records", st.Records)
		}
		service.SetServing(healthServer, true)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("taskdesk gRPC server listening", "port", cfg.Server.GRPCPort, "data_dir", cfg.Storage.DataDir, "env", cfg.Server.Environment)
		serveErr <- grpcServer.Serve(listener)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	service.SetServing(healthServer, false)
	grpcServer.GracefulStop()
	log.Info("server shutdown complete")
	return nil
}
