// Package answer decides what to say to a user whose profile intake is
// finished. Answer sources are tried in a fixed priority order and the first
// usable text wins; the static fallback at the end always answers.
package answer

import (
	"context"
	"strings"

	"swasthya/backend/internal/logger"
	"swasthya/backend/internal/metrics"
	"swasthya/backend/internal/profile"
)

const (
	SourceIntent     = "intent"
	SourceCompletion = "completion"
	SourceFallback   = "fallback"
)

type Request struct {
	ConversationID string
	Message        string
	Profile        profile.Context
}

type Result struct {
	Text   string
	Source string
}

// Provider is one answer source. ok is false whenever the source has nothing
// usable to offer (unconfigured, failed, low confidence or empty output).
type Provider interface {
	Name() string
	TryAnswer(ctx context.Context, req Request) (text string, ok bool)
}

type Cascade struct {
	providers []Provider
	fallback  *StaticFallback
	metrics   *metrics.ChatMetrics
	log       *logger.Logger
}

func NewCascade(providers []Provider, fallback *StaticFallback, m *metrics.ChatMetrics, log *logger.Logger) *Cascade {
	if fallback == nil {
		fallback = &StaticFallback{}
	}
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Cascade{
		providers: kept,
		fallback:  fallback,
		metrics:   m,
		log:       logger.OrNop(log).With("component", "answer.cascade"),
	}
}

func (c *Cascade) Answer(ctx context.Context, req Request) Result {
	for _, p := range c.providers {
		text, ok := p.TryAnswer(ctx, req)
		if ok && strings.TrimSpace(text) != "" {
			c.metrics.ObserveAnswer(p.Name())
			return Result{Text: text, Source: p.Name()}
		}
		c.metrics.ObserveStageFailure(p.Name(), "unusable")
		c.log.Debug("answer source unusable, trying next", "source", p.Name(), "conversation_id", req.ConversationID)
	}
	c.metrics.ObserveAnswer(SourceFallback)
	return Result{Text: c.fallback.Respond(req.Message, req.Profile), Source: SourceFallback}
}
