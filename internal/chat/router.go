// Package chat routes each inbound message either through the profile intake
// script or, once the profile is complete, to the answer cascade.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"swasthya/backend/internal/answer"
	"swasthya/backend/internal/logger"
	"swasthya/backend/internal/metrics"
	"swasthya/backend/internal/profile"
	"swasthya/backend/internal/session"
)

const SourceIntake = "intake"

var ErrMissingConversation = errors.New("chat: conversation id is required")

type Reply struct {
	Response        string          `json:"response"`
	UserContext     profile.Context `json:"userContext"`
	ProfileComplete bool            `json:"profileComplete"`
	Source          string          `json:"source"`
}

type Answerer interface {
	Answer(ctx context.Context, req answer.Request) answer.Result
}

// TranscriptRecorder persists finished turns. Failures are logged only.
type TranscriptRecorder interface {
	AppendTurn(ctx context.Context, conversationID, userText, botText string) error
}

type Router struct {
	store    session.Store
	answers  Answerer
	recorder TranscriptRecorder
	metrics  *metrics.ChatMetrics
	log      *logger.Logger

	// one mutex per conversation id; turns of the same conversation run in order
	locks sync.Map
}

type Option func(*Router)

func WithTranscript(recorder TranscriptRecorder) Option {
	return func(r *Router) { r.recorder = recorder }
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithLogger(log *logger.Logger) Option {
	return func(r *Router) { r.log = log }
}

func NewRouter(store session.Store, answers Answerer, opts ...Option) *Router {
	if store == nil {
		panic("chat: session store is required")
	}
	if answers == nil {
		answers = answer.NewCascade(nil, nil, nil, nil)
	}
	r := &Router{store: store, answers: answers}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log).With("component", "chat.router")
	return r
}

func (r *Router) HandleMessage(ctx context.Context, message, conversationID string) (Reply, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return Reply{}, ErrMissingConversation
	}

	unlock := r.lock(id)
	defer unlock()

	started := time.Now()
	state, err := r.store.CreateIfAbsent(ctx, id)
	if err != nil {
		return Reply{}, oops.In("chat").With("conversation_id", id).Wrapf(err, "load session")
	}

	var (
		reply Reply
		phase string
	)
	if !state.ProfileComplete {
		phase = SourceIntake
		reply, state = intakeTurn(message, state)
		if err := r.store.Update(ctx, id, state); err != nil {
			return Reply{}, oops.In("chat").With("conversation_id", id).Wrapf(err, "save session")
		}
		if state.ProfileComplete {
			r.metrics.ObserveIntakeCompleted()
			r.log.Info("profile intake completed", "conversation_id", id)
		}
	} else {
		phase = "answer"
		result := r.answers.Answer(ctx, answer.Request{
			ConversationID: id,
			Message:        message,
			Profile:        state.UserContext.Clone(),
		})
		reply = Reply{
			Response:        result.Text,
			UserContext:     state.UserContext.Clone(),
			ProfileComplete: true,
			Source:          result.Source,
		}
	}

	r.metrics.ObserveTurnLatency(phase, time.Since(started).Seconds())
	r.record(ctx, id, message, reply.Response)
	return reply, nil
}

// intakeTurn advances the intake script by one step. The first turn only
// asks the opening question; every later turn answers the previous one.
func intakeTurn(message string, state session.State) (Reply, session.State) {
	next := state.Clone()
	if next.ProfileSetupStep > 0 {
		next.UserContext = profile.Extract(message, next.UserContext)
	}

	question, ok := profile.NextQuestion(next.ProfileSetupStep)
	next.ProfileSetupStep++

	reply := Reply{Source: SourceIntake}
	if ok {
		reply.Response = question
	} else {
		next.ProfileComplete = true
		reply.Response = profile.CompletionMessage
	}
	reply.UserContext = next.UserContext.Clone()
	reply.ProfileComplete = next.ProfileComplete
	return reply, next
}

func (r *Router) record(ctx context.Context, id, userText, botText string) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.AppendTurn(ctx, id, userText, botText); err != nil {
		r.log.Warn("transcript append failed", "conversation_id", id, "error", err)
	}
}

func (r *Router) lock(id string) func() {
	value, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
