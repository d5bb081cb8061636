package telephony

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/routing"
	"outbound-dialer/pkg/logger"
)

// TwilioWebhookHandler converts Twilio webhooks to engine events and writes
// TwiML. No business logic here.
type TwilioWebhookHandler struct {
	Engine   *campaign.Engine
	Renderer Renderer
}

func (h TwilioWebhookHandler) requestContext(c *gin.Context, f TwilioCallbackForm) context.Context {
	ctx := logger.Attrs(c.Request.Context(), "call_sid", f.CallSid)
	return routing.WithCallMeta(ctx, routing.CallMeta{CallSid: f.CallSid, SourceIP: c.ClientIP()})
}

func (h TwilioWebhookHandler) parse(c *gin.Context) (TwilioCallbackForm, bool) {
	if h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign engine not configured"})
		return TwilioCallbackForm{}, false
	}
	form, err := ParseTwilioCallback(c.Request)
	if err != nil {
		logger.FromGin(c).Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return TwilioCallbackForm{}, false
	}
	return form, true
}

func (h TwilioWebhookHandler) HandleVoice(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	reply := h.Engine.VoiceEntry(h.requestContext(c, form), form.VoiceEvent())
	h.write(c, reply)
}

func (h TwilioWebhookHandler) HandleGather(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	reply := h.Engine.MenuResponse(h.requestContext(c, form), form.MenuEvent())
	h.write(c, reply)
}

// HandleStatus applies a call-status callback. Twilio only needs a 2xx.
func (h TwilioWebhookHandler) HandleStatus(c *gin.Context) {
	form, ok := h.parse(c)
	if !ok {
		return
	}
	res := h.Engine.CallStatus(h.requestContext(c, form), form.StatusEvent())
	if res.Ignored != "" {
		logger.FromGin(c).Debug("call status ignored", "reason", res.Ignored, "status", form.CallStatus)
	}
	c.Status(http.StatusNoContent)
}

func (h TwilioWebhookHandler) write(c *gin.Context, reply campaign.Reply) {
	twiml, err := h.Renderer.Render(reply)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "kind", reply.Kind, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
