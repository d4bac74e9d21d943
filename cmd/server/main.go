package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smarttrack/internal/api"
	"smarttrack/internal/app/service"
	"smarttrack/internal/app/worker"
	"smarttrack/internal/common/logger"
	"smarttrack/internal/common/security"
	"smarttrack/internal/domain/repository"
	"smarttrack/internal/platform/config"
	"smarttrack/internal/platform/database"
	"smarttrack/internal/platform/mailer"
	"smarttrack/internal/platform/queue"
)

func main() {
	config.Load()

	log := logger.Setup(config.AppConfig.Env)
	log.Info("starting smarttrack", slog.String("env", config.AppConfig.Env))

	security.InitJWT()

	database.Connect()
	defer database.Close()

	queue.ConnectRedis()
	defer queue.CloseRedis()

	userRepo := repository.NewPgUserRepository(database.DB)
	appRepo := repository.NewPgApplicationRepository(database.DB)

	notificationService := service.NewNotificationService(queue.RDB)
	authService := service.NewAuthService(userRepo, notificationService, log)
	userService := service.NewUserService(userRepo, log)
	appService := service.NewApplicationService(appRepo, log)

	// Welcome-email worker drains the queue until shutdown
	emailWorker := worker.NewEmailWorker(queue.RDB, mailer.New(), log)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go emailWorker.Start(workerCtx)

	router := api.NewRouter(authService, userService, appService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server starting", slog.String("port", config.AppConfig.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", logger.Err(err))
			os.Exit(1)
		}
	}()

	<-stop

	log.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logger.Err(err))
		os.Exit(1)
	}

	log.Info("server and worker stopped gracefully")
}
