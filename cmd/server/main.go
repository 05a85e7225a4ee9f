package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/walletvault/server/internal/analyzer"
	"github.com/walletvault/server/internal/api"
	"github.com/walletvault/server/internal/api/handlers"
	"github.com/walletvault/server/internal/audio"
	"github.com/walletvault/server/internal/cidcipher"
	"github.com/walletvault/server/internal/config"
	"github.com/walletvault/server/internal/metadata"
	"github.com/walletvault/server/internal/pinning"
	"github.com/walletvault/server/internal/tokens"
	"github.com/walletvault/server/internal/tts"
)

// @title WalletVault API
// @version 1.0
// @description Wallet-signature-authenticated file vault over IPFS.
// @BasePath /
func main() {
	env := config.Envs

	cipher, err := cidcipher.New(env.EncryptionKey)
	if err != nil {
		log.Fatalf("ENCRYPTION_KEY is unusable: %v", err)
	}

	pinner := pinning.New(env.Pinata.JWT, env.Pinata.Gateway)
	store := metadata.NewStore(pinner)

	table := tokens.NewTable()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	table.StartSweeper(ctx, tokens.SweepInterval)

	summarizer, err := analyzer.NewGemini(ctx, env.GoogleAPIKey)
	if err != nil {
		log.Fatalf("Gemini client init failed: %v", err)
	}
	defer summarizer.Close()

	speech, err := tts.New(env.ElevenLabsKey)
	if err != nil {
		log.Fatalf("ElevenLabs client init failed: %v", err)
	}

	audioStore, err := audio.NewStore(
		env.R2.AccessKeyID,
		env.R2.SecretAccessKey,
		env.R2.AccountID,
		env.R2.BucketName,
		env.R2.Region,
	)
	if err != nil {
		log.Fatalf("Audio bucket init failed: %v", err)
	}

	h := handlers.New(store, table, cipher, pinner, summarizer, speech, audioStore, env.Pinata.Gateway)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", env.Port),
		Handler: api.SetupRouter(h),
		// Timeouts prevent resource exhaustion from slow clients. Write is
		// generous because streaming pulls whole files through the gateway.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting WalletVault server on port: %s", env.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on port %s: %v", env.Port, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
