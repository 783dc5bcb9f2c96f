package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
)

func newLinkCmd() *cobra.Command {
	var (
		configPath string
		channel    string
		externalID string
		tenantID   string
		userID     string
		driverID   string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Register a messaging-platform identity against a tenant",
		Long:  "Links a Telegram chat, WhatsApp number, Slack or Discord user to a tenant so the assistant will answer them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, configPath, channel, externalID, tenantID, userID, driverID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atlas.yaml", "path to Atlas config file")
	cmd.Flags().StringVar(&channel, "channel", "", "platform: telegram, whatsapp, slack, discord (required)")
	cmd.Flags().StringVar(&externalID, "external-id", "", "platform identity: chat id, phone number, user id (required)")
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id (required)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "dispatcher user id, when the sender is a dispatcher")
	cmd.Flags().StringVarP(&driverID, "driver", "d", "", "driver id, when the sender is a driver")
	cmd.MarkFlagRequired("channel")
	cmd.MarkFlagRequired("external-id")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func runLink(cmd *cobra.Command, configPath, channel, externalID, tenantID, userID, driverID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	resolver, err := auth.NewResolver(gormDB)
	if err != nil {
		return err
	}
	if err := resolver.LinkChannel(channel, externalID, tenantID, userID, driverID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Linked %s:%s to tenant %s\n", channel, externalID, tenantID)
	return nil
}
