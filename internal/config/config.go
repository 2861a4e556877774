// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all settings shared by the server, worker and scheduler
// binaries.
type Config struct {
	Port        string `env:"PORT, default=8080"`
	DatabaseURL string `env:"DATABASE_URL, required"`
	RedisAddr   string `env:"REDIS_ADDR, default=127.0.0.1:6379"`

	// AI backends
	OpenAIAPIKey string `env:"OPENAI_API_KEY, required"`
	TextModel    string `env:"TEXT_MODEL, default=gpt-4o-mini"`
	SpeechModel  string `env:"SPEECH_MODEL, default=tts-1"`
	VoiceSingle  string `env:"VOICE_SINGLE, default=alloy"`
	VoiceA       string `env:"VOICE_A, default=onyx"`
	VoiceB       string `env:"VOICE_B, default=nova"`

	// Transcript providers
	TranscribeAPIURL string `env:"TRANSCRIBE_API_URL"`
	TranscribeAPIKey string `env:"TRANSCRIBE_API_KEY"`
	SearchAPIURL     string `env:"SEARCH_API_URL"`
	SearchAPIKey     string `env:"SEARCH_API_KEY"`

	// Blob storage
	S3Bucket           string `env:"S3_BUCKET, required"`
	S3Region           string `env:"S3_REGION, default=us-east-1"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// Notification email
	SMTPAddr string `env:"SMTP_ADDR"`
	SMTPFrom string `env:"SMTP_FROM, default=episodes@podslice.example"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`

	BaseURL string `env:"BASE_URL, default=http://localhost:8080"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
