// Package server exposes the web and webhook HTTP surface: dispatcher
// messages over authenticated JSON, document proposals, and the Telegram
// and WhatsApp webhook endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/docs"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/orchestrator"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	DB       *gorm.DB
	Resolver *auth.Resolver
	Loop     *orchestrator.Loop
	Docs     *docs.Service // optional; disables /document when nil
	Port     int

	// TelegramRouter handles messages arriving at the Telegram webhook.
	// Nil disables the route.
	TelegramRouter *channels.Router
	// WhatsAppRouter handles messages arriving at the WhatsApp webhook.
	WhatsAppRouter *channels.Router
	// WhatsApp answers the webhook verification handshake.
	WhatsApp *channels.WhatsApp
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Split from
// Start so tests can drive it with httptest.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("server: resolver is required")
	}
	if opts.Loop == nil {
		return nil, fmt.Errorf("server: loop is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router, nil
}
