package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		label      string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, userID, label)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atlas.yaml", "path to Atlas config file")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&label, "label", "l", "", "what this token is for")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, userID, label string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var user models.User
	if err := gormDB.Where("id = ?", userID).First(&user).Error; err != nil {
		return fmt.Errorf("user %s not found", userID)
	}

	token := models.APIToken{
		Token:  strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		UserID: userID,
		Label:  label,
	}
	if err := gormDB.Create(&token).Error; err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Token for %s: %s\n", user.Email, token.Token)
	return nil
}
