package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"podslice/internal/config"
	"podslice/internal/db"
	"podslice/internal/feed"
	"podslice/internal/handlers"
	"podslice/internal/middleware"
	"podslice/internal/storage"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	db.InitDB(cfg.DatabaseURL)

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		log.Fatalf("could not init storage: %v", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	h := handlers.New(client, store, feed.NewGenerator(store, cfg.BaseURL))
	rateLimiter := middleware.NewRateLimiterMiddleware(rate.Limit(1), 5)

	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware, rateLimiter.Middleware)
	api.HandleFunc("/episodes", h.CreateEpisode).Methods(http.MethodPost)
	api.HandleFunc("/episodes", h.ListEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}", h.GetEpisode).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}/audio", h.GetEpisodeAudio).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)

	// Feed endpoints carry their secret in the URL, no auth middleware.
	r.HandleFunc("/rss/{uuid}", h.GetPersonalFeed).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{uuid}", h.GetCatalogFeed).Methods(http.MethodGet)

	log.Printf("Starting server on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
