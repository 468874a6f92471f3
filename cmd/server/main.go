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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"duochat/internal/attachment"
	"duochat/internal/changefeed"
	"duochat/internal/chat"
	"duochat/internal/config"
	"duochat/internal/database"
	"duochat/internal/handler"
	"duochat/internal/logger"
	"duochat/internal/preference"
	"duochat/internal/store"
)

const (
	attachmentRoute = "/attachments"
	preferenceHash  = "duochat:preferences"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 環境変数を読み込み
	cfg := config.Load()

	logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: "duochat"})
	log := logger.L()
	if envErr != nil {
		log.Debug().Err(envErr).Msg(".env file not found, using environment")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows, closeRows, err := openRowStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize database")
	}
	defer closeRows()

	feed, err := openFeed(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize change feed")
	}
	defer feed.Close()

	objects, attachmentDir, err := openObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize attachment storage")
	}

	prefs, closePrefs, err := openPreferences(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize preference store")
	}
	defer closePrefs()

	hub := chat.NewHub(ctx, chat.HubConfig{
		Store:    store.NewNotifying(rows, feed),
		Feed:     feed,
		Uploader: attachment.NewUploader(objects, cfg.MaxAttachmentBytes),
		Prefs:    prefs,
	})
	defer hub.Close()

	if err := hub.SeedParticipants(ctx, cfg.Participants); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to seed participants")
	}

	h := handler.New(hub, cfg, attachmentDir)
	router := h.SetupRouter()
	router.Use(logger.HTTPMiddleware(*log))

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS", "PUT"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Viewer", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Println("========================================")
	fmt.Println("  DuoChat API Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws\n", cfg.ServerPort)
	fmt.Printf("  Database: %s\n", cfg.DBDriver)
	fmt.Printf("  Change feed: %s\n", cfg.FeedDriver)
	fmt.Printf("  Attachments: %s\n", cfg.StorageDriver)
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Println("========================================")

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Server started successfully")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openRowStore(cfg config.Config) (store.RowStore, func(), error) {
	if cfg.DBDriver == "memory" {
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Init(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewSQLStore(db), func() { db.Close() }, nil
}

func openFeed(cfg config.Config) (changefeed.Feed, error) {
	if cfg.FeedDriver == "redis" {
		return changefeed.NewRedisFeed(changefeed.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return changefeed.NewLocalFeed(), nil
}

// openObjectStore returns the attachment store and, for local storage, the
// directory the router serves under /attachments/.
func openObjectStore(ctx context.Context, cfg config.Config) (attachment.ObjectStore, string, error) {
	if cfg.StorageDriver == "s3" {
		s3Store, err := attachment.NewS3Store(ctx, attachment.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicURL:       cfg.StoragePublicURL,
		})
		return s3Store, "", err
	}

	baseURL := cfg.StoragePublicURL
	if baseURL == "" {
		baseURL = attachmentRoute
	}
	local, err := attachment.NewLocalStore(cfg.StorageLocalPath, baseURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

func openPreferences(cfg config.Config) (preference.Store, func(), error) {
	if cfg.PreferenceDriver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return preference.NewRedisStore(client, preferenceHash), func() { client.Close() }, nil
	}

	fs, err := preference.NewFileStore(cfg.PreferencePath)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
