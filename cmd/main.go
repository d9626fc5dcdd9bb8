package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/widyatma/lantang/adapters/llm"
	"github.com/widyatma/lantang/adapters/memory"
	adaptermongo "github.com/widyatma/lantang/adapters/mongo"
	"github.com/widyatma/lantang/adapters/stt"
	"github.com/widyatma/lantang/adapters/tts"
	"github.com/widyatma/lantang/domain/repositories"
	"github.com/widyatma/lantang/internal/api"
	"github.com/widyatma/lantang/internal/auth"
	"github.com/widyatma/lantang/internal/config"
	"github.com/widyatma/lantang/internal/observability"
	"github.com/widyatma/lantang/internal/websocket"
	"github.com/widyatma/lantang/usecase"
)

const tokenTTL = 24 * time.Hour

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("LANTANG_JWT_SECRET is required")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	tokens := auth.NewTokenService(cfg.JWTSecret, tokenTTL)

	// Provider selection: mocks when keys are absent or explicitly
	// requested, real adapters otherwise.
	var (
		transcriber repositories.Transcriber
		synthesizer repositories.Synthesizer
		generator   repositories.ResponseGenerator
		store       repositories.SessionStore
	)
	if cfg.UseMockProviders {
		logger.Info("Using mock providers")
		transcriber = stt.NewMockTranscriber(logger)
		synthesizer = tts.NewMockSynthesizer(logger)
		generator = llm.NewMockGenerator(logger)
		store = memory.NewStore()
	} else {
		googleSTT, err := stt.NewGoogleTranscriber(rootCtx)
		if err != nil {
			logger.Fatal("Failed to create speech client", zap.Error(err))
		}
		defer googleSTT.Close()
		transcriber = googleSTT

		elevenlabs, err := tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			APIBaseURL:   cfg.ElevenLabsBaseURL,
			VoiceID:      cfg.ElevenLabsVoiceID,
			ModelID:      cfg.ElevenLabsModelID,
			OutputFormat: cfg.ElevenLabsFormat,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create synthesizer", zap.Error(err))
		}
		synthesizer = elevenlabs

		gemini, err := llm.NewGemini(rootCtx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create response generator", zap.Error(err))
		}
		generator = gemini

		mongoClient, err := adaptermongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Warn("MongoDB unavailable, falling back to in-memory store", zap.Error(err))
			store = memory.NewStore()
		} else {
			defer mongoClient.Close(context.Background())
			store = adaptermongo.NewExchangeRepository(mongoClient.Database)
		}
	}

	responder := usecase.NewResponder(generator, store, logger, usecase.ResponderOptions{})

	registry := websocket.NewRegistry(logger, metrics)
	registry.StartJanitor(rootCtx, 30*time.Second, 2*cfg.IdleTimeout)

	tuning := websocket.Tuning{
		RawQueueDepth:        cfg.RawQueueDepth,
		SegmentBytes:         cfg.SegmentBytes,
		SegmentIdleFlush:     cfg.SegmentIdleFlush,
		SpeechRatio:          cfg.SpeechRatio,
		VADWindowFrames:      cfg.VADWindowFrames,
		VADEnergyFloor:       cfg.VADEnergyFloor,
		AudioQueueDepth:      cfg.AudioQueueDepth,
		TranscriptQueueDepth: cfg.TranscriptQueueDepth,
		ResponseQueueDepth:   cfg.ResponseQueueDepth,
		ConfidenceFloor:      cfg.ConfidenceFloor,
		DeliveryChunkBytes:   cfg.DeliveryChunkBytes,
		DeliveryPacing:       cfg.DeliveryPacing,
		SpeakingWPM:          cfg.SpeakingWPM,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		IdleTimeout:          cfg.IdleTimeout,
		DrainGrace:           cfg.DrainGrace,
	}

	deps := websocket.Deps{
		Registry:    registry,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Responder:   responder,
		Tuning:      tuning,
		Logger:      logger,
		Metrics:     metrics,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, deps, tokens, store, tokenTTL, cfg.AllowAnyOrigin)

	go func() {
		if err := e.Start(cfg.BindAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("Server started",
		zap.String("addr", cfg.BindAddr),
		zap.Bool("mockProviders", cfg.UseMockProviders))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
