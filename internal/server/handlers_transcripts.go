package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"swasthya/backend/internal/transcript"
)

const maxTranscriptListLimit = 100

func (a *App) transcriptsAvailable(c *gin.Context) bool {
	if a.transcripts == nil {
		writeError(c, http.StatusServiceUnavailable, "Chat history is not configured")
		return false
	}
	return true
}

func (a *App) listChats(c *gin.Context) {
	if !a.transcriptsAvailable(c) {
		return
	}
	limit := parseLimit(c.Query("limit"), a.cfg.TranscriptListLimit, maxTranscriptListLimit)

	items, err := a.transcripts.ListRecent(c.Request.Context(), limit)
	if err != nil {
		a.log.Error("transcript list failed", "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": items})
}

func (a *App) getChatMessages(c *gin.Context) {
	if !a.transcriptsAvailable(c) {
		return
	}
	chatID := strings.TrimSpace(c.Param("chatId"))

	messages, err := a.transcripts.Messages(c.Request.Context(), chatID)
	if errors.Is(err, transcript.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		a.log.Error("transcript load failed", "chat_id", chatID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to load chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatId": chatID, "messages": messages})
}

func (a *App) deleteChat(c *gin.Context) {
	if !a.transcriptsAvailable(c) {
		return
	}
	chatID := strings.TrimSpace(c.Param("chatId"))

	err := a.transcripts.Delete(c.Request.Context(), chatID)
	if errors.Is(err, transcript.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		a.log.Error("transcript delete failed", "chat_id", chatID, "error", err)
		writeError(c, http.StatusInternalServerError, "Failed to delete chat")
		return
	}
	c.Status(http.StatusNoContent)
}
