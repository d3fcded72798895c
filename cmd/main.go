package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/config"
	"github.com/Vovarama1992/whisperer/internal/delivery"
	ws "github.com/Vovarama1992/whisperer/internal/delivery/ws"
	"github.com/Vovarama1992/whisperer/internal/domain"
	"github.com/Vovarama1992/whisperer/internal/domain/stations"
	"github.com/Vovarama1992/whisperer/internal/infra"
	"github.com/Vovarama1992/whisperer/internal/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func main() {

	// LOGGER
	zcore, _ := zap.NewProduction()
	defer zcore.Sync()
	zl := logger.NewZapLogger(zcore.Sugar())

	// CONFIG
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic("invalid config: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// HISTORY: postgres when configured, memory otherwise
	var repo ports.TranscriptRepository
	if cfg.Storage.DatabaseURL != "" {
		pool, err := infra.NewPgxPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			panic(err.Error())
		}
		defer pool.Close()

		pg := infra.NewPostgresTranscriptRepo(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			panic(err.Error())
		}
		repo = pg
	} else {
		repo = infra.NewMemoryTranscriptRepo(200)
	}

	// SEGMENT CACHE
	var cache ports.SegmentCache
	if cfg.Storage.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			zl.Log(logger.LogEntry{
				Level:   "warn",
				Message: "redis unavailable, segment cache disabled",
				Error:   err,
			})
		} else {
			defer rdb.Close()
			cache = infra.NewRedisSegmentCache(rdb)
		}
	}

	// TRANSCRIPTION BACKEND
	var stt ports.TranscriptionService
	switch cfg.Whisper.Backend {
	case config.BackendOpenAI:
		stt = infra.NewOpenAITranscriber(infra.OpenAIConfig{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.Whisper.Model,
			Language: cfg.Whisper.Language,
		})
	default:
		local := infra.NewLocalWhisper(infra.LocalWhisperConfig{
			PythonPath: cfg.Whisper.Python,
			Model:      cfg.Whisper.Model,
			Device:     cfg.Whisper.Device,
			Language:   cfg.Whisper.Language,
		}, zl)
		if err := local.Open(ctx); err != nil {
			panic("whisper model load failed: " + err.Error())
		}
		defer local.Close()
		stt = local
	}

	// STATIONS
	vad := stations.VADConfig{
		SampleRate:      cfg.Audio.SampleRate,
		ChunkDuration:   cfg.Audio.ChunkDuration,
		VolumeThreshold: cfg.Audio.VolumeThreshold,
		SilenceDuration: cfg.Audio.SilenceDuration,
		MaxDuration:     cfg.Audio.MaxRecording,
	}
	mic := infra.NewFFmpegMic(infra.MicConfig{
		FFmpegPath:      cfg.Audio.FFmpegPath,
		InputFormat:     cfg.Audio.InputFormat,
		InputDevice:     cfg.Audio.InputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		SamplesPerChunk: vad.SamplesPerChunk(),
	})

	s1 := stations.NewS1CaptureUtterance(vad, zl)
	s2 := stations.NewS2WriteWAV(infra.NewWAVWriter(), zl)
	s3 := stations.NewS3Transcribe(stt, cache, stations.TranscribeConfig{
		BeamSize:      cfg.Whisper.BeamSize,
		MaxConcurrent: cfg.Whisper.MaxConcurrent,
		CacheTTL:      cfg.Storage.CacheTTL,
	}, zl)

	// PIPELINE
	whisper := domain.NewWhisperService(mic, repo, s1, s2, s3, zl)

	// WS HUB
	hub := ws.NewHub(zl)
	go ws.Pump(ctx, hub, whisper.Events(), zl)

	// ROUTER
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	delivery.RegisterRoutes(r, delivery.NewWhisperHandler(whisper, repo, zl), ws.EventsHandler(hub))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		panic("listen: " + err.Error())
	}

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "server started",
		Fields: map[string]any{
			"port":    cfg.Port,
			"backend": stt.Name(),
		},
	})

	// deferred closes (worker, pools) run only after in-flight requests drain
	if err := serve(ctx, srv, ln, shutdownGrace); err != nil {
		zl.Log(logger.LogEntry{
			Level:   "error",
			Message: "server stopped with error",
			Error:   err,
		})
		return
	}

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "server stopped",
	})
}
