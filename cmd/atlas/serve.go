package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels/discord"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels/slack"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/digest"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/docs"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/hos"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/llm"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/orchestrator"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/server"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant: HTTP server, channel adapters, digest schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atlas.yaml", "path to Atlas config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	resolver, err := auth.NewResolver(gormDB)
	if err != nil {
		return err
	}
	completer, err := llm.NewClient(llm.ClientConfig{
		APIKey: cfg.Assistant.APIKey,
		Model:  cfg.Assistant.Model,
	})
	if err != nil {
		return err
	}
	var ranker tools.Ranker
	if cfg.HOS.URL != "" {
		ranker = hos.NewClient(cfg.HOS.URL, time.Duration(cfg.HOS.TimeoutSeconds)*time.Second)
	}
	loop, err := orchestrator.NewLoop(orchestrator.LoopOpts{
		DB:           gormDB,
		Completer:    completer,
		Ranker:       ranker,
		MaxRounds:    cfg.Assistant.MaxToolRounds,
		Budget:       time.Duration(cfg.Assistant.RequestBudgetS) * time.Second,
		HistoryTurns: cfg.Assistant.HistoryTurns,
	})
	if err != nil {
		return err
	}
	docsSvc, err := docs.NewService(docs.ServiceOpts{DB: gormDB})
	if err != nil {
		return err
	}
	intercepts := channels.NewIntercepts(docsSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup
	serverOpts := server.StartOpts{
		DB:       gormDB,
		Resolver: resolver,
		Loop:     loop,
		Docs:     docsSvc,
		Port:     cfg.Server.Port,
	}
	var digestAdapter channels.Adapter

	// Webhook-fed channels hang their routers off the HTTP server.
	if cfg.Telegram.BotToken != "" {
		tg, err := channels.NewTelegram(channels.TelegramOpts{Token: cfg.Telegram.BotToken})
		if err != nil {
			return err
		}
		router, err := newChannelRouter(gormDB, resolver, loop, intercepts, tg, ranker, "")
		if err != nil {
			return err
		}
		serverOpts.TelegramRouter = router
		digestAdapter = tg
		fmt.Fprintln(cmd.OutOrStdout(), "Telegram webhook enabled")
	}
	if cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneID != "" {
		wa, err := channels.NewWhatsApp(channels.WhatsAppOpts{
			Token:       cfg.WhatsApp.AccessToken,
			PhoneID:     cfg.WhatsApp.PhoneID,
			VerifyToken: cfg.WhatsApp.VerifyToken,
		})
		if err != nil {
			return err
		}
		router, err := newChannelRouter(gormDB, resolver, loop, intercepts, wa, ranker, "")
		if err != nil {
			return err
		}
		serverOpts.WhatsAppRouter = router
		serverOpts.WhatsApp = wa
		fmt.Fprintln(cmd.OutOrStdout(), "WhatsApp webhook enabled")
	}

	// Socket-fed channels run their own listen goroutines.
	if cfg.Slack.AppToken != "" && cfg.Slack.BotToken != "" {
		adapter, err := slack.New(slack.AdapterOpts{
			AppToken: cfg.Slack.AppToken,
			BotToken: cfg.Slack.BotToken,
		})
		if err != nil {
			return err
		}
		if err := runListener(ctx, &wg, adapter, gormDB, resolver, loop, intercepts, ranker); err != nil {
			return err
		}
		digestAdapter = adapter
		fmt.Fprintln(cmd.OutOrStdout(), "Slack socket mode enabled")
	}
	if cfg.Discord.BotToken != "" {
		adapter, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken})
		if err != nil {
			return err
		}
		if err := runListener(ctx, &wg, adapter, gormDB, resolver, loop, intercepts, ranker); err != nil {
			return err
		}
		if digestAdapter == nil {
			digestAdapter = adapter
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Discord gateway enabled")
	}

	if cfg.Digest.Enabled {
		if digestAdapter == nil || cfg.Digest.ReplyTo == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Digest enabled but no adapter or destination configured; skipping")
		} else {
			sched, err := digest.NewScheduler(digest.SchedulerOpts{
				DB:      gormDB,
				Adapter: digestAdapter,
				ReplyTo: cfg.Digest.ReplyTo,
				Cron:    cfg.Digest.Cron,
			})
			if err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Run(ctx)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Digest scheduled: %s\n", cfg.Digest.Cron)
		}
	}

	err = server.Start(ctx, serverOpts)
	cancel()
	wg.Wait()
	return err
}

func newChannelRouter(gormDB *gorm.DB, resolver *auth.Resolver, loop *orchestrator.Loop,
	intercepts *channels.Intercepts, adapter channels.Adapter, ranker tools.Ranker, botUserID string) (*channels.Router, error) {
	return channels.NewRouter(channels.RouterOpts{
		DB:         gormDB,
		Resolver:   resolver,
		Loop:       loop,
		Intercepts: intercepts,
		Adapter:    adapter,
		Ranker:     ranker,
		BotUserID:  botUserID,
	})
}

// runListener connects a socket-based adapter and pumps its inbound
// messages through a channel router until ctx is cancelled.
func runListener(ctx context.Context, wg *sync.WaitGroup, adapter channels.Listener,
	gormDB *gorm.DB, resolver *auth.Resolver, loop *orchestrator.Loop,
	intercepts *channels.Intercepts, ranker tools.Ranker) error {
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	router, err := newChannelRouter(gormDB, resolver, loop, intercepts, adapter, ranker, adapter.BotUserID())
	if err != nil {
		return err
	}
	inbound, err := adapter.Listen(ctx)
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer adapter.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-inbound:
				if !ok {
					return
				}
				router.Handle(ctx, msg)
			}
		}
	}()
	return nil
}
