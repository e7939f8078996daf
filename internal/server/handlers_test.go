package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"swasthya/backend/internal/config"
	"swasthya/backend/internal/messaging"
	"swasthya/backend/internal/profile"
	"swasthya/backend/internal/session"
	"swasthya/backend/internal/transcript"
)

func TestHealthReportsConfiguredFeatures(t *testing.T) {
	env := newTestEnv(t)
	rec := performRequest(t, env.router, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeJSONMap(t, rec)
	if payload["status"] != "OK" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	features, _ := payload["features"].([]any)
	if len(features) != 2 || features[0] != "chat" || features[1] != "profile creation" {
		t.Fatalf("unexpected base features: %v", features)
	}

	env = newTestEnv(t,
		withSender(&stubSender{}),
		withTranscripts(&stubTranscripts{}),
		withConfig(func(c *config.Config) {
			c.LlamaAPIKey = "key"
			c.DialogflowClientEmail = "bot@example.iam.gserviceaccount.com"
			c.DialogflowPrivateKey = "pem"
		}),
	)
	payload = decodeJSONMap(t, performRequest(t, env.router, http.MethodGet, "/health", nil, nil))
	features, _ = payload["features"].([]any)
	joined := make([]string, 0, len(features))
	for _, f := range features {
		joined = append(joined, f.(string))
	}
	if got := strings.Join(joined, ","); got != "chat,profile creation,dialogflow,llama_fallback,twilio_whatsapp,chat_history" {
		t.Fatalf("unexpected features: %s", got)
	}
}

func TestChatRunsIntakeThenAnswers(t *testing.T) {
	env := newTestEnv(t)

	first := sendChat(t, env.router, "web-1", "hi")
	if first["response"] != "Hello! I'm Swasthya HealthBot. What's your name?" {
		t.Fatalf("unexpected opening question: %v", first["response"])
	}
	if first["profileComplete"] != false || first["source"] != "intake" {
		t.Fatalf("unexpected first reply: %v", first)
	}

	second := sendChat(t, env.router, "web-1", "Asha")
	if second["response"] != "How old are you?" {
		t.Fatalf("unexpected second question: %v", second["response"])
	}
	userContext, _ := second["userContext"].(map[string]any)
	if userContext["name"] != "Asha" {
		t.Fatalf("expected name to be captured, got %v", userContext)
	}

	sendChat(t, env.router, "web-1", "I am 34 years old and that is all")
	sendChat(t, env.router, "web-1", "My children are Aarav-8 and Anika-3")
	sendChat(t, env.router, "web-1", "None that I know of, thank you for asking")
	last := sendChat(t, env.router, "web-1", "Pune")
	if last["response"] != profile.CompletionMessage || last["profileComplete"] != true {
		t.Fatalf("expected intake to complete, got %v", last)
	}

	answered := sendChat(t, env.router, "web-1", "When are vaccines due?")
	if answered["source"] != "fallback" {
		t.Fatalf("expected fallback answer, got %v", answered["source"])
	}
	response, _ := answered["response"].(string)
	// The short name reply already filled location, so later replies never overwrite it.
	if !strings.Contains(response, "Vaccination Info") || !strings.Contains(response, "Since you're in Asha") {
		t.Fatalf("unexpected answer: %q", response)
	}

	if got := env.counterTotal(t, "swasthya_intake_completed_total"); got != 1 {
		t.Fatalf("expected one completed intake, got %v", got)
	}
}

func TestChatFailureEnvelope(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing session", map[string]any{"message": "hi"}},
		{"missing message", map[string]any{"sessionId": "web-1"}},
		{"blank session", map[string]any{"message": "hi", "sessionId": "   "}},
		{"malformed json", `{"message":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := performRequest(t, env.router, http.MethodPost, "/api/chat", tc.body, nil)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			payload := decodeJSONMap(t, rec)
			if payload["error"] != "Internal server error" {
				t.Fatalf("unexpected error field: %v", payload["error"])
			}
			if payload["response"] != "I'm experiencing technical difficulties. Please try again later." {
				t.Fatalf("unexpected response field: %v", payload["response"])
			}
		})
	}

	if env.sessions.Len() != 0 {
		t.Fatalf("rejected requests must not create sessions")
	}
}

func TestChatBlankMessageIsAnOrdinaryTurn(t *testing.T) {
	env := newTestEnv(t)

	for i, message := range []string{"", "   "} {
		rec := performRequest(t, env.router, http.MethodPost, "/api/chat", map[string]any{
			"message":   message,
			"sessionId": fmt.Sprintf("blank-%d", i),
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("message %q: expected 200, got %d body=%s", message, rec.Code, rec.Body.String())
		}
	}

	sendChat(t, env.router, "web-2", "hi")
	reply := sendChat(t, env.router, "web-2", "")
	if reply["response"] != "How old are you?" {
		t.Fatalf("expected blank reply to advance the intake, got %v", reply["response"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := performRequest(t, env.router, http.MethodPost, "/api/sessions", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	created := decodeJSONMap(t, rec)
	sessionID, _ := created["sessionId"].(string)
	if sessionID == "" {
		t.Fatalf("expected a session id, got %v", created)
	}
	if created["profileSetupStep"] != float64(0) || created["profileComplete"] != false {
		t.Fatalf("unexpected fresh session: %v", created)
	}

	sendChat(t, env.router, sessionID, "hi")

	rec = performRequest(t, env.router, http.MethodGet, "/api/sessions/"+sessionID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeJSONMap(t, rec)["profileSetupStep"]; got != float64(1) {
		t.Fatalf("expected step 1 after opening turn, got %v", got)
	}

	rec = performRequest(t, env.router, http.MethodGet, "/api/sessions/unknown", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeJSONMap(t, rec)["detail"]; got != "Session not found" {
		t.Fatalf("unexpected detail: %v", got)
	}
}

func TestSessionReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.sessions.Update(ctx, "family", session.State{
		UserContext: profile.Context{
			Name:     "Meera",
			Children: []profile.Child{{Name: "Ravi", Age: 0}, {Name: "Tara", Age: 7}},
		},
		ProfileSetupStep: 3,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	rec := performRequest(t, env.router, http.MethodGet, "/api/sessions/family/reminders", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	reminders, _ := decodeJSONMap(t, rec)["reminders"].([]any)
	if len(reminders) != 1 {
		t.Fatalf("expected one reminder, got %v", reminders)
	}
	first := reminders[0].(map[string]any)
	if first["child"] != "Ravi" || first["nextCheckup"] != "Monthly" {
		t.Fatalf("unexpected reminder: %v", first)
	}

	rec = performRequest(t, env.router, http.MethodGet, "/api/sessions/nobody/reminders", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestChatHistoryUnavailable(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/chats"},
		{http.MethodGet, "/api/chats/abc"},
		{http.MethodDelete, "/api/chats/abc"},
	} {
		rec := performRequest(t, env.router, tc.method, tc.path, nil, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestChatHistoryEndpoints(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store := &stubTranscripts{
		summaries: []transcript.Summary{{ID: "web-1", Title: "hi", Preview: "hi | Hello", MessageCount: 2, UpdatedAt: now}},
		messages: map[string][]transcript.Message{
			"web-1": {
				{ID: "m1", Role: transcript.RoleUser, Content: "hi", CreatedAt: now},
				{ID: "m2", Role: transcript.RoleBot, Content: "Hello", CreatedAt: now},
			},
		},
	}
	env := newTestEnv(t, withTranscripts(store))

	rec := performRequest(t, env.router, http.MethodGet, "/api/chats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	chats, _ := decodeJSONMap(t, rec)["chats"].([]any)
	if len(chats) != 1 || store.listLimit != 15 {
		t.Fatalf("unexpected list result %v with limit %d", chats, store.listLimit)
	}

	performRequest(t, env.router, http.MethodGet, "/api/chats?limit=500", nil, nil)
	if store.listLimit != 100 {
		t.Fatalf("expected limit to be capped at 100, got %d", store.listLimit)
	}

	rec = performRequest(t, env.router, http.MethodGet, "/api/chats/web-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	messages, _ := decodeJSONMap(t, rec)["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected two messages, got %v", messages)
	}

	rec = performRequest(t, env.router, http.MethodDelete, "/api/chats/web-1", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = performRequest(t, env.router, http.MethodGet, "/api/chats/web-1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	rec = performRequest(t, env.router, http.MethodDelete, "/api/chats/web-1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", rec.Code)
	}

	store.err = errors.New("connection reset")
	rec = performRequest(t, env.router, http.MethodGet, "/api/chats", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on store failure, got %d", rec.Code)
	}
}

func TestWhatsAppNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	rec := postForm(t, env.router, "/api/whatsapp", url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hi"}}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "Twilio not configured." {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestWhatsAppRoundTrip(t *testing.T) {
	sender := &stubSender{}
	env := newTestEnv(t, withSender(sender))

	form := url.Values{
		"MessageSid": {"SM123"},
		"From":       {"whatsapp:+91 98765-43210"},
		"To":         {"whatsapp:+14155238886"},
		"Body":       {"hello"},
	}
	rec := postForm(t, env.router, "/api/whatsapp", form, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("expected TwiML content type, got %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != messaging.EmptyTwiML {
		t.Fatalf("unexpected TwiML: %q", rec.Body.String())
	}

	sent := sender.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(sent))
	}
	if sent[0].To != "whatsapp:+91 98765-43210" || sent[0].Body != "Hello! I'm Swasthya HealthBot. What's your name?" {
		t.Fatalf("unexpected outbound message: %+v", sent[0])
	}

	state, ok, err := env.sessions.Get(context.Background(), "919876543210")
	if err != nil || !ok {
		t.Fatalf("expected session keyed by sender digits (ok=%v err=%v)", ok, err)
	}
	if state.ProfileSetupStep != 1 {
		t.Fatalf("expected step 1, got %d", state.ProfileSetupStep)
	}

	if got := env.counterTotal(t, "swasthya_whatsapp_inbound_total"); got != 1 {
		t.Fatalf("expected one inbound message counted, got %v", got)
	}
}

func TestWhatsAppSendFailureReturnsErrorTwiML(t *testing.T) {
	env := newTestEnv(t, withSender(&stubSender{err: errors.New("twilio 503")}))

	rec := postForm(t, env.router, "/api/whatsapp", url.Values{"From": {"whatsapp:+15550001111"}, "Body": {"hi"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != messaging.ErrorTwiML {
		t.Fatalf("unexpected TwiML: %q", rec.Body.String())
	}
}

func TestWhatsAppMissingSenderReturnsErrorTwiML(t *testing.T) {
	sender := &stubSender{}
	env := newTestEnv(t, withSender(sender))

	rec := postForm(t, env.router, "/api/whatsapp", url.Values{"Body": {"hi"}}, nil)
	if rec.Body.String() != messaging.ErrorTwiML {
		t.Fatalf("unexpected TwiML: %q", rec.Body.String())
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("nothing should be sent without a sender address")
	}
}

func TestWhatsAppSignatureValidation(t *testing.T) {
	const (
		token      = "auth-token"
		webhookURL = "https://bot.example.org/api/whatsapp"
	)
	sender := &stubSender{}
	env := newTestEnv(t, withSender(sender), withConfig(func(c *config.Config) {
		c.TwilioValidateSignature = true
		c.TwilioAuthToken = token
		c.TwilioWebhookURL = webhookURL
	}))

	form := url.Values{"From": {"whatsapp:+15550001111"}, "Body": {"hi"}}

	rec := postForm(t, env.router, "/api/whatsapp", form, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", rec.Code)
	}
	rec = postForm(t, env.router, "/api/whatsapp", form, map[string]string{messaging.SignatureHeader: "bogus"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with bad signature, got %d", rec.Code)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("rejected webhooks must not send")
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(webhookURL + "Body" + "hi" + "From" + "whatsapp:+15550001111"))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	rec = postForm(t, env.router, "/api/whatsapp", form, map[string]string{messaging.SignatureHeader: signature})
	if rec.Code != http.StatusOK || rec.Body.String() != messaging.EmptyTwiML {
		t.Fatalf("expected signed webhook to succeed, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestWhatsAppStatusCallback(t *testing.T) {
	env := newTestEnv(t)
	rec := postForm(t, env.router, "/api/whatsapp-status", url.Values{
		"MessageSid":    {"SM123"},
		"MessageStatus": {"delivered"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sendChat(t, env.router, "web-1", "hi")

	rec := performRequest(t, env.router, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "swasthya_chat_turn_latency_seconds") {
		t.Fatalf("expected turn latency histogram in exposition")
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 15},
		{"  ", 15},
		{"abc", 15},
		{"0", 15},
		{"-3", 15},
		{"7", 7},
		{" 40 ", 40},
		{"1000", 100},
	}
	for _, tc := range tests {
		if got := parseLimit(tc.raw, 15, 100); got != tc.want {
			t.Fatalf("parseLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
