package config

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
}

type PinataConfig struct {
	JWT     string
	Gateway string // dedicated gateway base, e.g. https://example.mypinata.cloud
}

type Config struct {
	Port          string
	Environment   string
	EncryptionKey string // 64 hex chars; validated at startup, fatal if wrong
	GoogleAPIKey  string
	ElevenLabsKey string
	CorsConfig    cors.Options
	Pinata        PinataConfig
	R2            R2Config
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENV", "development"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		GoogleAPIKey:  getEnv("GOOGLE_API_KEY", ""),
		ElevenLabsKey: getEnv("ELEVENLABS_API_KEY", ""),
		CorsConfig:    CorsConfig(),
		Pinata: PinataConfig{
			JWT:     getEnv("PINATA_JWT", ""),
			Gateway: getEnv("PINATA_GATEWAY", "https://gateway.pinata.cloud"),
		},
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", "audio-summaries"),
			Region:          getEnv("R2_REGION", "auto"),
		},
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"x-evm-address",
			"x-evm-message",
			"x-evm-signature",
		},
		AllowCredentials: true,
	}
}
