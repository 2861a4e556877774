package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"podslice/internal/ai"
	"podslice/internal/config"
	"podslice/internal/db"
	"podslice/internal/notify"
	"podslice/internal/storage"
	"podslice/internal/transcript"
	"podslice/internal/tts"
	"podslice/internal/worker"
	"podslice/pkg/tasks"
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

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	generator := ai.NewClient(openaiClient, cfg.TextModel)
	backend := tts.NewOpenAIBackend(openaiClient, openai.SpeechModel(cfg.SpeechModel))

	resolver := transcript.NewResolver(transcript.DefaultChains(
		transcript.NewVideoAPIProvider(cfg.TranscribeAPIURL, cfg.TranscribeAPIKey),
		transcript.NewCaptionProvider(),
		transcript.NewSearchProvider(cfg.SearchAPIURL, cfg.SearchAPIKey),
	))

	notifier := notify.NewNotifier(&notify.SMTPMailer{
		Addr: cfg.SMTPAddr,
		From: cfg.SMTPFrom,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
	}, cfg.BaseURL)

	taskHandler := worker.NewTaskHandler(
		client,
		resolver,
		generator,
		tts.NewSynthesizer(backend, false),
		tts.NewSynthesizer(backend, true),
		store,
		notifier,
		worker.NewDurationExtractor(store, nil),
		worker.Voices{Single: cfg.VoiceSingle, A: cfg.VoiceA, B: cfg.VoiceB},
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			// Exponential backoff: 1min, 2min, 4min, capped at 1 hour.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Minute
				maxDelay := time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
			ErrorHandler: worker.NewErrorHandler(taskHandler),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeGenerateEpisode, taskHandler.HandleGenerateEpisodeTask)
	mux.HandleFunc(tasks.TypeGenerateDialogueEpisode, taskHandler.HandleGenerateDialogueEpisodeTask)
	mux.HandleFunc(tasks.TypeSynthesizeChunk, taskHandler.HandleSynthesizeChunkTask)
	mux.HandleFunc(tasks.TypeCombineChunks, taskHandler.HandleCombineChunksTask)
	mux.HandleFunc(tasks.TypeBackfillDurations, taskHandler.HandleBackfillDurationsTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
