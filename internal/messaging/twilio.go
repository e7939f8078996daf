// Package messaging adapts the Twilio WhatsApp channel: inbound webhook
// parsing, request signature checks and outbound sends.
package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/samber/oops"
)

const (
	SignatureHeader = "X-Twilio-Signature"

	EmptyTwiML = "<Response></Response>"
	ErrorTwiML = "<Response><Message>Bot error occurred.</Message></Response>"
)

type Inbound struct {
	MessageSID string
	AccountSID string
	From       string
	To         string
	Body       string
}

type StatusCallback struct {
	MessageSID    string
	MessageStatus string
	To            string
	ErrorCode     string
}

func ParseWebhook(r *http.Request) (Inbound, error) {
	if err := r.ParseForm(); err != nil {
		return Inbound{}, oops.In("messaging").Wrapf(err, "parse webhook form")
	}
	in := Inbound{
		MessageSID: r.PostFormValue("MessageSid"),
		AccountSID: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}
	if in.From == "" {
		return Inbound{}, oops.In("messaging").Errorf("webhook is missing From")
	}
	return in, nil
}

func ParseStatusCallback(r *http.Request) (StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallback{}, oops.In("messaging").Wrapf(err, "parse status form")
	}
	return StatusCallback{
		MessageSID:    r.PostFormValue("MessageSid"),
		MessageStatus: r.PostFormValue("MessageStatus"),
		To:            r.PostFormValue("To"),
		ErrorCode:     r.PostFormValue("ErrorCode"),
	}, nil
}

// ConversationKey reduces a sender address such as "whatsapp:+91 98765-43210"
// to its digits.
func ConversationKey(from string) string {
	var b strings.Builder
	b.Grow(len(from))
	for _, r := range from {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateSignature checks X-Twilio-Signature against the configured public
// webhook URL and the posted form.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" || authToken == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(signaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func signaturePayload(webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
