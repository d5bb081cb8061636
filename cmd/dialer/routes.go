package main

import (
	"net/http"

	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/httpapi"
	"outbound-dialer/internal/prompt"
	"outbound-dialer/internal/rbac"
	"outbound-dialer/internal/telephony"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Auth     *auth.Manager
	API      httpapi.Handlers
	Webhooks telephony.TwilioWebhookHandler

	// AudioDir is served publicly so the provider can fetch <Play> clips.
	AudioDir string
	// WebhookAuth guards provider callbacks (signature validation).
	WebhookAuth []gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.AudioDir != "" {
		r.Static(prompt.AudioRoute, d.AudioDir)
	}

	// Provider webhooks (public, signed).
	hooks := r.Group("/", d.WebhookAuth...)
	{
		hooks.POST(telephony.PathVoice, d.Webhooks.HandleVoice)
		hooks.POST(telephony.PathGather, d.Webhooks.HandleGather)
		hooks.POST(telephony.PathStatus, d.Webhooks.HandleStatus)
	}

	h := d.API
	r.POST("/v1/auth/refresh", h.Refresh)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.Auth))
	{
		v1.GET("/me", h.Me)

		campaign := v1.Group("/campaign")
		{
			read := rbac.RequireAnyRole(rbac.RoleViewer, rbac.RoleOperator)
			write := rbac.RequireAnyRole(rbac.RoleOperator)

			campaign.GET("/progress", read, h.Progress)
			campaign.GET("/reports", read, h.ListReports)
			campaign.GET("/reports/:name", read, h.DownloadReport)

			campaign.POST("/contacts", write, h.UploadContacts)
			campaign.POST("/start", write, h.StartCampaign)
			campaign.POST("/stop", write, h.StopCampaign)
			campaign.POST("/reports", write, h.GenerateReport)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/agents", h.AgentLines)
			admin.GET("/audit", h.AuditEvents)
			admin.GET("/transfer-overrides", h.ListTransferOverrides)
			admin.POST("/transfer-overrides", h.CreateTransferOverride)
			admin.DELETE("/transfer-overrides/:id", h.DeleteTransferOverride)
		}
	}
}
