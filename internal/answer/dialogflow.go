package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dialogflow "cloud.google.com/go/dialogflow/apiv2"
	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"github.com/samber/oops"
	"google.golang.org/api/option"
)

var ErrDialogflowCredentials = errors.New("dialogflow credentials are not configured")

// DialogflowDetector resolves intents through the Dialogflow ES sessions API.
type DialogflowDetector struct {
	client *dialogflow.SessionsClient
}

var _ IntentDetector = (*DialogflowDetector)(nil)

// NewDialogflowDetector builds a client from a service-account email and
// private key. Keys copied from env files usually carry literal "\n"
// sequences; those are turned back into newlines.
func NewDialogflowDetector(ctx context.Context, clientEmail, privateKey string) (*DialogflowDetector, error) {
	if strings.TrimSpace(clientEmail) == "" || strings.TrimSpace(privateKey) == "" {
		return nil, ErrDialogflowCredentials
	}

	creds, err := serviceAccountJSON(clientEmail, privateKey)
	if err != nil {
		return nil, err
	}

	client, err := dialogflow.NewSessionsClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, oops.In("dialogflow").Wrapf(err, "create sessions client")
	}
	return &DialogflowDetector{client: client}, nil
}

func serviceAccountJSON(clientEmail, privateKey string) ([]byte, error) {
	payload := map[string]string{
		"type":         "service_account",
		"client_email": strings.TrimSpace(clientEmail),
		"private_key":  strings.ReplaceAll(privateKey, `\n`, "\n"),
		"token_uri":    "https://oauth2.googleapis.com/token",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, oops.In("dialogflow").Wrapf(err, "encode service account")
	}
	return raw, nil
}

func sessionPath(projectID, sessionID string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", projectID, sessionID)
}

func (d *DialogflowDetector) DetectIntent(ctx context.Context, q IntentQuery) (IntentResult, error) {
	resp, err := d.client.DetectIntent(ctx, &dialogflowpb.DetectIntentRequest{
		Session: sessionPath(q.ProjectID, q.SessionID),
		QueryInput: &dialogflowpb.QueryInput{
			Input: &dialogflowpb.QueryInput_Text{
				Text: &dialogflowpb.TextInput{
					Text:         q.Text,
					LanguageCode: q.LanguageCode,
				},
			},
		},
	})
	if err != nil {
		return IntentResult{}, oops.In("dialogflow").With("session_id", q.SessionID).Wrapf(err, "detect intent")
	}

	result := resp.GetQueryResult()
	if result == nil {
		return IntentResult{}, oops.In("dialogflow").With("session_id", q.SessionID).Errorf("empty query result")
	}
	return IntentResult{
		IntentName:      result.GetIntent().GetDisplayName(),
		FulfillmentText: result.GetFulfillmentText(),
		Confidence:      float64(result.GetIntentDetectionConfidence()),
	}, nil
}

func (d *DialogflowDetector) Close() error {
	return d.client.Close()
}
