package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"swasthya/backend/internal/profile"
)

func (a *App) postChat(c *gin.Context) {
	started := time.Now()

	var payload chatRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.log.Warn("chat request rejected", "reason", "invalid payload", "error", err)
		writeChatFailure(c)
		return
	}
	if payload.Message == nil || payload.SessionID == nil {
		a.log.Warn("chat request rejected", "reason", "message and sessionId are required")
		writeChatFailure(c)
		return
	}
	sessionID := *payload.SessionID

	reply, err := a.chat.HandleMessage(c.Request.Context(), *payload.Message, sessionID)
	if err != nil {
		a.log.Error("chat turn failed", "session_id", sessionID, "error", err)
		writeChatFailure(c)
		return
	}

	a.metrics.ObserveTurnLatency("http", time.Since(started).Seconds())
	c.JSON(http.StatusOK, reply)
}

func writeChatFailure(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, chatFailure{
		Error:    "Internal server error",
		Response: chatFailureResponse,
	})
}

func (a *App) createSession(c *gin.Context) {
	sessionID := uuid.NewString()
	state, err := a.sessions.CreateIfAbsent(c.Request.Context(), sessionID)
	if err != nil {
		a.log.Error("session create failed", "session_id", sessionID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		SessionID:        sessionID,
		UserContext:      state.UserContext,
		ProfileSetupStep: state.ProfileSetupStep,
		ProfileComplete:  state.ProfileComplete,
	})
}

func (a *App) getSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	state, ok, err := a.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		a.log.Error("session lookup failed", "session_id", sessionID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "Session not found")
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		SessionID:        sessionID,
		UserContext:      state.UserContext,
		ProfileSetupStep: state.ProfileSetupStep,
		ProfileComplete:  state.ProfileComplete,
	})
}

func (a *App) getSessionReminders(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	state, ok, err := a.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		a.log.Error("session lookup failed", "session_id", sessionID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "Session not found")
		return
	}
	c.JSON(http.StatusOK, remindersResponse{
		SessionID: sessionID,
		Reminders: profile.VaccinationReminders(state.UserContext.Children),
	})
}
