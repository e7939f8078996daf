package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swasthya/backend/internal/messaging"
)

// whatsappWebhook runs one chat turn for an inbound WhatsApp message and
// sends the reply back through Twilio before acknowledging the webhook.
func (a *App) whatsappWebhook(c *gin.Context) {
	if a.sender == nil {
		c.String(http.StatusInternalServerError, "Twilio not configured.")
		return
	}
	if a.cfg.TwilioValidateSignature &&
		!messaging.ValidateSignature(c.Request, a.cfg.TwilioAuthToken, a.cfg.TwilioWebhookURL) {
		a.metrics.ObserveWhatsAppInbound("rejected")
		writeError(c, http.StatusForbidden, "Invalid Twilio signature")
		return
	}

	in, err := messaging.ParseWebhook(c.Request)
	if err != nil {
		a.log.Warn("whatsapp webhook rejected", "error", err)
		a.metrics.ObserveWhatsAppInbound("invalid")
		writeTwiML(c, messaging.ErrorTwiML)
		return
	}

	conversationID := messaging.ConversationKey(in.From)
	ctx := c.Request.Context()

	reply, err := a.chat.HandleMessage(ctx, in.Body, conversationID)
	if err == nil {
		err = a.sender.Send(ctx, messaging.Outbound{To: in.From, Body: reply.Response})
	}
	if err != nil {
		a.log.Error("whatsapp turn failed", "conversation_id", conversationID, "message_sid", in.MessageSID, "error", err)
		a.metrics.ObserveWhatsAppInbound("error")
		writeTwiML(c, messaging.ErrorTwiML)
		return
	}

	a.metrics.ObserveWhatsAppInbound("ok")
	writeTwiML(c, messaging.EmptyTwiML)
}

func (a *App) whatsappStatus(c *gin.Context) {
	status, err := messaging.ParseStatusCallback(c.Request)
	if err != nil {
		a.log.Warn("whatsapp status callback unreadable", "error", err)
	} else {
		a.log.Info("whatsapp status update",
			"message_sid", status.MessageSID,
			"status", status.MessageStatus,
			"to", status.To,
			"error_code", status.ErrorCode,
		)
	}
	c.Status(http.StatusOK)
}

func writeTwiML(c *gin.Context, body string) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(body))
}
