package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/memora/backend/internal/config"
	"github.com/memora/backend/internal/database"
	"github.com/memora/backend/internal/handlers"
	"github.com/memora/backend/internal/mailer"
	"github.com/memora/backend/internal/middleware"
	"github.com/memora/backend/internal/services"
	"github.com/memora/backend/internal/storage"
	"github.com/memora/backend/pkg/logger"
	"github.com/memora/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := storage.NewMinIOStore(cfg.Storage)
	if err != nil {
		log.Fatalf("object storage initialization failed: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring storage bucket: %v", err)
	}

	var google services.IdentityVerifier
	if cfg.Google.ClientID != "" {
		google = services.NewGoogleVerifier(context.Background(), cfg.Google.ClientID)
	} else {
		logger.Warn("social_login_disabled", map[string]interface{}{"reason": "GOOGLE_CLIENT_ID not set"})
	}

	auditService := services.NewAuditService(db)
	memoryService := services.NewMemoryService(db, store, auditService, cfg.Storage.PresignTTL)
	accountService := services.NewAccountService(db, store, mailer.New(cfg.Mail), memoryService, auditService, google, cfg.Server.FrontendURL)
	accountService.PresignTTL = memoryService.PresignTTL
	if exchanger := services.NewGoogleCodeExchanger(cfg.Google, google); exchanger != nil {
		accountService.GoogleCode = exchanger
	}
	if cfg.JWT.SocialExpirationHours > 0 {
		accountService.SocialTokenTTL = time.Duration(cfg.JWT.SocialExpirationHours) * time.Hour
	}

	maxFileBytes := int64(cfg.Uploads.MaxFileMB) * 1024 * 1024

	app := fiber.New(fiber.Config{BodyLimit: cfg.Uploads.BodyLimit()})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(
		app,
		handlers.NewAccountsHandler(accountService, maxFileBytes),
		handlers.NewMemoriesHandler(memoryService, maxFileBytes),
		handlers.NewAuditHandler(db),
		middleware.NewAuthMiddleware(db),
	)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":        cfg.Server.Port,
		"address":     listenAddr,
		"db_driver":   cfg.DB.Driver,
		"bucket":      cfg.Storage.Bucket,
		"max_file_mb": cfg.Uploads.MaxFileMB,
		"smtp":        cfg.Mail.Enabled(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		auditService.Close()
	case err := <-errCh:
		auditService.Close()
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
