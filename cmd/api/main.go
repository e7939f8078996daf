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

	"github.com/prometheus/client_golang/prometheus"

	"swasthya/backend/internal/answer"
	"swasthya/backend/internal/chat"
	"swasthya/backend/internal/config"
	"swasthya/backend/internal/db"
	"swasthya/backend/internal/logger"
	"swasthya/backend/internal/messaging"
	"swasthya/backend/internal/metrics"
	"swasthya/backend/internal/server"
	"swasthya/backend/internal/session"
	"swasthya/backend/internal/transcript"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	var sessions session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rdb, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connect failed", "error", err)
		}
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb)
	default:
		sessions = session.NewMemoryStore()
	}

	var (
		transcripts *transcript.Store
		chatOpts    []chat.Option
	)
	if cfg.DatabaseConfigured() {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connect failed", "error", err)
		}
		defer pool.Close()

		if err := transcript.EnsureSchema(ctx, pool); err != nil {
			log.Fatal("transcript schema setup failed", "error", err)
		}
		transcripts = transcript.NewStore(pool)
		chatOpts = append(chatOpts, chat.WithTranscript(transcripts))
	} else {
		log.Info("DATABASE_URL not set; chat history disabled")
	}

	var detector answer.IntentDetector
	if cfg.DialogflowConfigured() {
		df, err := answer.NewDialogflowDetector(ctx, cfg.DialogflowClientEmail, cfg.DialogflowPrivateKey)
		if err != nil {
			log.Warn("dialogflow unavailable; skipping intent detection", "error", err)
		} else {
			defer df.Close()
			detector = df
		}
	}

	completionTimeout := time.Duration(cfg.LlamaTimeoutSeconds) * time.Second
	var completer answer.ChatCompleter
	if cfg.LlamaConfigured() {
		client, err := answer.NewOpenAIChatClient(cfg.LlamaAPIKey, cfg.LlamaBaseURL, completionTimeout)
		if err != nil {
			log.Warn("completion client unavailable", "error", err)
		} else {
			completer = client
		}
	}

	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)
	cascade := answer.NewCascade(
		[]answer.Provider{
			answer.NewIntentProvider(detector, cfg.DialogflowProjectID, cfg.DialogflowLanguageCode, log),
			answer.NewCompletionProvider(completer, answer.CompletionConfig{
				Models:  cfg.LlamaModels,
				Timeout: completionTimeout,
				Params: answer.CompletionParams{
					Temperature: answer.Float32(float32(cfg.LlamaTemperature)),
					TopP:        float32(cfg.LlamaTopP),
					MaxTokens:   cfg.LlamaMaxTokens,
				},
			}, log),
		},
		&answer.StaticFallback{},
		chatMetrics,
		log,
	)

	chatOpts = append(chatOpts, chat.WithMetrics(chatMetrics), chat.WithLogger(log))
	router := chat.NewRouter(sessions, cascade, chatOpts...)

	deps := server.Dependencies{
		Chat:     router,
		Sessions: sessions,
		Metrics:  chatMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   log,
	}
	if transcripts != nil {
		deps.Transcripts = transcripts
	}
	if cfg.TwilioConfigured() {
		sender, err := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, log)
		if err != nil {
			log.Warn("twilio sender unavailable", "error", err)
		} else {
			deps.Sender = sender
		}
	}

	app := server.New(cfg, deps)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("swasthya api listening", "addr", "http://localhost:"+cfg.AppPort, "session_store", cfg.SessionStore)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
