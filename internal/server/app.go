package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swasthya/backend/internal/chat"
	"swasthya/backend/internal/config"
	"swasthya/backend/internal/logger"
	"swasthya/backend/internal/messaging"
	"swasthya/backend/internal/metrics"
	"swasthya/backend/internal/session"
	"swasthya/backend/internal/transcript"
)

const (
	chatFailureResponse = "I'm experiencing technical difficulties. Please try again later."
	healthMessage       = "Swasthya HealthBot API is running"
)

type ChatService interface {
	HandleMessage(ctx context.Context, message, conversationID string) (chat.Reply, error)
}

type TranscriptStore interface {
	ListRecent(ctx context.Context, limit int) ([]transcript.Summary, error)
	Messages(ctx context.Context, chatID string) ([]transcript.Message, error)
	Delete(ctx context.Context, chatID string) error
}

// Dependencies are the collaborators the HTTP layer routes to. Transcripts
// and Sender are optional; their endpoints report themselves unavailable
// when nil.
type Dependencies struct {
	Chat        ChatService
	Sessions    session.Store
	Transcripts TranscriptStore
	Sender      messaging.Sender
	Metrics     *metrics.ChatMetrics
	Gatherer    prometheus.Gatherer
	Logger      *logger.Logger
}

type App struct {
	cfg         config.Config
	chat        ChatService
	sessions    session.Store
	transcripts TranscriptStore
	sender      messaging.Sender
	metrics     *metrics.ChatMetrics
	gatherer    prometheus.Gatherer
	log         *logger.Logger
}

func New(cfg config.Config, deps Dependencies) *App {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &App{
		cfg:         cfg,
		chat:        deps.Chat,
		sessions:    deps.Sessions,
		transcripts: deps.Transcripts,
		sender:      deps.Sender,
		metrics:     deps.Metrics,
		gatherer:    gatherer,
		log:         logger.OrNop(deps.Logger),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(a.log), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	api := router.Group(a.cfg.APIPrefix)

	api.POST("/chat", a.postChat)
	api.POST("/sessions", a.createSession)
	api.GET("/sessions/:sessionId", a.getSession)
	api.GET("/sessions/:sessionId/reminders", a.getSessionReminders)
	api.GET("/chats", a.listChats)
	api.GET("/chats/:chatId", a.getChatMessages)
	api.DELETE("/chats/:chatId", a.deleteChat)
	api.POST("/whatsapp", a.whatsappWebhook)
	api.POST("/whatsapp-status", a.whatsappStatus)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "OK",
		"message":  healthMessage,
		"features": a.features(),
	})
}

func (a *App) features() []string {
	features := []string{"chat", "profile creation"}
	if a.cfg.DialogflowConfigured() {
		features = append(features, "dialogflow")
	}
	if a.cfg.LlamaConfigured() {
		features = append(features, "llama_fallback")
	}
	if a.sender != nil {
		features = append(features, "twilio_whatsapp")
	}
	if a.transcripts != nil {
		features = append(features, "chat_history")
	}
	return features
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
