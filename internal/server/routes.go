package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/docs"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/orchestrator"
)

func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealthz(opts))
	router.POST("/message", handleMessage(opts))
	if opts.Docs != nil {
		router.POST("/document", handleDocument(opts))
	}
	if opts.TelegramRouter != nil {
		router.POST("/webhook/telegram", handleTelegramWebhook(opts))
	}
	if opts.WhatsAppRouter != nil && opts.WhatsApp != nil {
		router.GET("/webhook/whatsapp", handleWhatsAppVerify(opts))
		router.POST("/webhook/whatsapp", handleWhatsAppWebhook(opts))
	}
}

func handleHealthz(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := opts.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// resolveBearer authenticates the request and writes the failure response
// itself when the credential is bad.
func resolveBearer(c *gin.Context, opts StartOpts) (auth.Identity, bool) {
	identity, err := opts.Resolver.Resolve(c.GetHeader("Authorization"))
	if errors.Is(err, auth.ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid credentials"})
		return auth.Identity{}, false
	}
	if errors.Is(err, auth.ErrNoActiveTenant) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active organization for this account"})
		return auth.Identity{}, false
	}
	if err != nil {
		log.Printf("server: resolve bearer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return auth.Identity{}, false
	}
	return identity, true
}

// handleMessage runs one dispatcher message through the loop. The session
// id keys conversation memory for the web channel.
func handleMessage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := resolveBearer(c, opts)
		if !ok {
			return
		}

		var req struct {
			SessionID string `json:"session_id" binding:"required"`
			Message   string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and message are required"})
			return
		}

		channelIdentity := channels.ChannelWeb + ":" + req.SessionID
		started := time.Now()
		reply, err := opts.Loop.Handle(c.Request.Context(), orchestrator.Inbound{
			Identity:        identity,
			ChannelIdentity: channelIdentity,
			UserText:        req.Message,
		})
		if err != nil {
			log.Printf("server: message %s: %v", identity.TenantID, err)
		}
		auditWebExchange(opts, identity.TenantID, channelIdentity, req.Message, reply,
			int(time.Since(started).Milliseconds()))

		// The loop always yields a safe reply, even on internal failure.
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}

// auditWebExchange logs both directions of a web turn so later turns on the
// same session replay it as history, the same way the chat routers audit.
func auditWebExchange(opts StartOpts, tenantID, channelIdentity, userText, reply string, latencyMs int) {
	rows := []models.MessageLog{
		{
			TenantID:        tenantID,
			Channel:         channels.ChannelWeb,
			ChannelIdentity: channelIdentity,
			Direction:       models.DirectionIn,
			Content:         userText,
		},
		{
			TenantID:        tenantID,
			Channel:         channels.ChannelWeb,
			ChannelIdentity: channelIdentity,
			Direction:       models.DirectionOut,
			Content:         reply,
			LatencyMs:       latencyMs,
		},
	}
	if err := opts.DB.Create(&rows).Error; err != nil {
		log.Printf("server: audit %s: %v", channelIdentity, err)
	}
}

// handleDocument accepts a parsed rate confirmation and stores it for the
// yes/no confirmation flow on the caller's session.
func handleDocument(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := resolveBearer(c, opts)
		if !ok {
			return
		}

		var req struct {
			SessionID string        `json:"session_id" binding:"required"`
			Document  docs.Document `json:"document" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and document are required"})
			return
		}

		channelIdentity := channels.ChannelWeb + ":" + req.SessionID
		pending, summary, err := opts.Docs.Propose(identity.TenantID, channelIdentity, req.Document)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document is missing required fields"})
			return
		}

		// Remember the pending document so the next yes/no resolves it.
		store, err := memory.NewStore(opts.DB)
		if err == nil {
			mem, loadErr := store.Load(identity.TenantID, channelIdentity)
			if loadErr == nil {
				mem.PendingDocumentID = pending.ID
				if saveErr := store.Save(identity.TenantID, channelIdentity, mem); saveErr != nil {
					log.Printf("server: save pending document memory: %v", saveErr)
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"reply": summary, "document_id": pending.ID})
	}
}

// handleTelegramWebhook acknowledges every delivery immediately; Telegram
// retries non-200 responses, and retry storms help nobody. Malformed
// payloads are logged and dropped at this boundary.
func handleTelegramWebhook(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusOK)
			return
		}

		msg, err := channels.ParseTelegramUpdate(body)
		if err != nil {
			log.Printf("server: telegram webhook: %v", err)
			c.Status(http.StatusOK)
			return
		}

		opts.TelegramRouter.Handle(c.Request.Context(), msg)
		c.Status(http.StatusOK)
	}
}

func handleWhatsAppVerify(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		challenge, ok := opts.WhatsApp.VerifyWebhook(
			c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
		if !ok {
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, challenge)
	}
}

func handleWhatsAppWebhook(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusOK)
			return
		}

		msgs, err := channels.ParseWhatsAppEnvelope(body)
		if err != nil {
			log.Printf("server: whatsapp webhook: %v", err)
			c.Status(http.StatusOK)
			return
		}

		for _, msg := range msgs {
			opts.WhatsAppRouter.Handle(c.Request.Context(), msg)
		}
		c.Status(http.StatusOK)
	}
}
