package server

import (
	"strconv"
	"strings"

	"swasthya/backend/internal/profile"
)

// chatRequest uses pointers so an absent field can be told apart from an
// empty one; only absent fields are rejected.
type chatRequest struct {
	Message   *string `json:"message"`
	SessionID *string `json:"sessionId"`
}

type chatFailure struct {
	Error    string `json:"error"`
	Response string `json:"response"`
}

type sessionResponse struct {
	SessionID        string          `json:"sessionId"`
	UserContext      profile.Context `json:"userContext"`
	ProfileSetupStep int             `json:"profileSetupStep"`
	ProfileComplete  bool            `json:"profileComplete"`
}

type remindersResponse struct {
	SessionID string             `json:"sessionId"`
	Reminders []profile.Reminder `json:"reminders"`
}

// parseLimit reads a positive ?limit= value, capped at limitCap.
func parseLimit(raw string, fallback, limitCap int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if parsed > limitCap {
		return limitCap
	}
	return parsed
}
