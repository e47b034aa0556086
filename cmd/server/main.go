// Package main initializes and starts the data protection server, setting up
// configuration, logging, the document store, encryption services,
// repositories, and HTTP handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/BasedHardware/omi-sub000/internal/config"
	"github.com/BasedHardware/omi-sub000/internal/encryption"
	"github.com/BasedHardware/omi-sub000/internal/logger"
	"github.com/BasedHardware/omi-sub000/internal/protection"
	"github.com/BasedHardware/omi-sub000/internal/repository"
	"github.com/BasedHardware/omi-sub000/internal/server/handler/http"
	"github.com/BasedHardware/omi-sub000/internal/service"
	"github.com/BasedHardware/omi-sub000/internal/store"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Parse command-line and environment configuration. The process refuses
	// to start without a usable master secret.
	options, err := config.Parse()
	if err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	// Open the document store and start value log garbage collection.
	db, err := store.Open(options.DataDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open document store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	db.StartGC(context.Background(), 10*time.Minute)

	// Initialize per-user key derivation with an in-memory key cache.
	keys, err := encryption.NewKeyService(options.EncryptionSecret)
	if err != nil {
		zapLogger.Fatal("cannot init key service", zap.Error(err))
	}
	defer keys.Close()

	// Wire the protection pipeline: level resolution, field encoding.
	resolver := protection.NewResolver(db.Cache(), db, options.CacheTTL, zapLogger)
	tf := protection.NewTransformer(keys, zapLogger)
	pipe := protection.NewPipeline(resolver, tf)

	// Initialize repositories for each protected document family.
	batchSize := options.MigrationBatchSize
	conversationRepo := repository.NewConversationRepository(db, pipe, tf, batchSize, zapLogger)
	chatRepo := repository.NewChatRepository(db, pipe, tf, batchSize, zapLogger)
	memoryRepo := repository.NewMemoryRepository(db, pipe, tf, batchSize, zapLogger)
	personRepo := repository.NewPersonRepository(db, pipe, tf, batchSize, zapLogger)

	// Initialize business-logic services.
	migrationService := service.NewMigrationService(zapLogger,
		conversationRepo, chatRepo, memoryRepo, personRepo)
	userService := service.NewUserService(db, resolver, zapLogger)

	// Create HTTP handlers and build the router.
	usersHandler := &http.UsersHandler{
		Migrations: migrationService,
		Users:      userService,
	}
	router := http.NewRouter(usersHandler, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
