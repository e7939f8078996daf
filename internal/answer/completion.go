package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"swasthya/backend/internal/logger"
	"swasthya/backend/internal/profile"
)

const (
	DefaultCompletionTimeout = 15 * time.Second
	DefaultTemperature       = 0.7
	DefaultMaxTokens         = 1000
	DefaultTopP              = 0.9
)

// DefaultModels are tried in order until one returns usable text.
var DefaultModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"llama-4-scout-17b-16e",
	"compound-mini",
}

const basePrompt = "You are Swasthya HealthBot, a helpful health assistant for rural India. " +
	"Provide accurate health information in simple language. " +
	"Tailor responses to the user's context. " +
	"Avoid repetitive greetings. " +
	"Sound confident and trustworthy."

type ChatMessage struct {
	Role    string
	Content string
}

// CompletionParams are sent with every attempt. A nil Temperature means the
// default; zero is a valid explicit value.
type CompletionParams struct {
	Temperature *float32
	TopP        float32
	MaxTokens   int
}

type ChatCompleter interface {
	Complete(ctx context.Context, model string, messages []ChatMessage, params CompletionParams) (string, error)
}

type CompletionConfig struct {
	Models  []string
	Timeout time.Duration
	Params  CompletionParams
}

func Float32(v float32) *float32 { return &v }

func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		Models:  append([]string(nil), DefaultModels...),
		Timeout: DefaultCompletionTimeout,
		Params: CompletionParams{
			Temperature: Float32(DefaultTemperature),
			TopP:        DefaultTopP,
			MaxTokens:   DefaultMaxTokens,
		},
	}
}

// CompletionProvider walks the configured models in order. Each attempt gets
// its own timeout; an error, timeout or blank reply moves on to the next model.
type CompletionProvider struct {
	client ChatCompleter
	cfg    CompletionConfig
	log    *logger.Logger
}

var _ Provider = (*CompletionProvider)(nil)

func NewCompletionProvider(client ChatCompleter, cfg CompletionConfig, log *logger.Logger) *CompletionProvider {
	defaults := DefaultCompletionConfig()
	if len(cfg.Models) == 0 {
		cfg.Models = defaults.Models
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Params.MaxTokens <= 0 {
		cfg.Params.MaxTokens = defaults.Params.MaxTokens
	}
	if cfg.Params.Temperature == nil {
		cfg.Params.Temperature = defaults.Params.Temperature
	}
	if cfg.Params.TopP <= 0 {
		cfg.Params.TopP = defaults.Params.TopP
	}
	return &CompletionProvider{
		client: client,
		cfg:    cfg,
		log:    logger.OrNop(log).With("component", "answer.completion"),
	}
}

func (p *CompletionProvider) Name() string { return SourceCompletion }

func (p *CompletionProvider) TryAnswer(ctx context.Context, req Request) (string, bool) {
	if p.client == nil {
		return "", false
	}

	messages := BuildPrompt(req.Message, req.Profile)
	for _, model := range p.cfg.Models {
		if ctx.Err() != nil {
			return "", false
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		started := time.Now()
		raw, err := p.client.Complete(attemptCtx, model, messages, p.cfg.Params)
		cancel()
		if err != nil {
			p.log.Warn("completion model failed",
				"model", model,
				"conversation_id", req.ConversationID,
				"elapsed_ms", time.Since(started).Milliseconds(),
				"error", err,
			)
			continue
		}

		text := FormatResponse(raw)
		if text == "" {
			p.log.Warn("completion model returned empty output", "model", model, "conversation_id", req.ConversationID)
			continue
		}
		p.log.Debug("completion model answered", "model", model, "conversation_id", req.ConversationID)
		return text, true
	}

	p.log.Warn("all completion models failed", "conversation_id", req.ConversationID, "models", len(p.cfg.Models))
	return "", false
}

// BuildPrompt returns the system and user messages for one question.
func BuildPrompt(message string, user profile.Context) []ChatMessage {
	var b strings.Builder
	b.WriteString(basePrompt)

	if !user.IsEmpty() {
		b.WriteString("\n\nUser Context:")
		if user.Name != "" {
			b.WriteString("\n- Name: " + user.Name)
		}
		if user.Age > 0 {
			fmt.Fprintf(&b, "\n- Age: %d", user.Age)
		}
		if user.Location != "" {
			b.WriteString("\n- Location: " + user.Location)
		}
		if len(user.Children) > 0 {
			parts := make([]string, 0, len(user.Children))
			for _, child := range user.Children {
				parts = append(parts, fmt.Sprintf("%s (%d years)", child.Name, child.Age))
			}
			b.WriteString("\n- Children: " + strings.Join(parts, ", "))
		}
		if user.Conditions != "" {
			b.WriteString("\n- Conditions: " + user.Conditions)
		}
		b.WriteString("\n\nUse this context to personalize your response when relevant.")
	}
	b.WriteString("\n\nKeep responses clear, practical, and focused on actionable advice.")

	return []ChatMessage{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: message},
	}
}

var (
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	blankLinesPattern = regexp.MustCompile(`\n\s*\n`)
)

// FormatResponse turns **bold** markup into <strong> tags and collapses
// runs of blank lines.
func FormatResponse(text string) string {
	out := boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	out = blankLinesPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
