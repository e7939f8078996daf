package answer

import (
	"context"
	"strings"

	"swasthya/backend/internal/logger"
)

const (
	DefaultProjectID    = "default-project"
	DefaultLanguageCode = "en"

	// Intent answers at or below this confidence are discarded.
	MinIntentConfidence = 0.3
)

type IntentQuery struct {
	ProjectID    string
	SessionID    string
	Text         string
	LanguageCode string
}

type IntentResult struct {
	IntentName      string
	FulfillmentText string
	Confidence      float64
}

type IntentDetector interface {
	DetectIntent(ctx context.Context, q IntentQuery) (IntentResult, error)
}

// IntentProvider asks an intent-detection service for a canned fulfilment.
type IntentProvider struct {
	detector     IntentDetector
	projectID    string
	languageCode string
	log          *logger.Logger
}

var _ Provider = (*IntentProvider)(nil)

// NewIntentProvider accepts a nil detector; the provider then always declines.
func NewIntentProvider(detector IntentDetector, projectID, languageCode string, log *logger.Logger) *IntentProvider {
	if strings.TrimSpace(projectID) == "" {
		projectID = DefaultProjectID
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = DefaultLanguageCode
	}
	return &IntentProvider{
		detector:     detector,
		projectID:    projectID,
		languageCode: languageCode,
		log:          logger.OrNop(log).With("component", "answer.intent"),
	}
}

func (p *IntentProvider) Name() string { return SourceIntent }

func (p *IntentProvider) TryAnswer(ctx context.Context, req Request) (string, bool) {
	if p.detector == nil {
		return "", false
	}

	result, err := p.detector.DetectIntent(ctx, IntentQuery{
		ProjectID:    p.projectID,
		SessionID:    req.ConversationID,
		Text:         req.Message,
		LanguageCode: p.languageCode,
	})
	if err != nil {
		p.log.Warn("intent detection failed", "conversation_id", req.ConversationID, "error", err)
		return "", false
	}

	text := strings.TrimSpace(result.FulfillmentText)
	if text == "" || result.Confidence <= MinIntentConfidence {
		p.log.Debug("intent result discarded",
			"conversation_id", req.ConversationID,
			"intent", result.IntentName,
			"confidence", result.Confidence,
		)
		return "", false
	}
	return result.FulfillmentText, true
}
