package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/tui"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant",
		Long: `Open a conversation with the household assistant.

Replies that would change something carry an action. Nothing is written
until you confirm it: ctrl+y confirms the latest action, ctrl+n cancels it.
Use --plain for a line-by-line prompt without the full-screen view.`,
		RunE: runChat,
	}

	cmd.Flags().Bool("plain", false, "Use the line-mode prompt instead of the full-screen view")
	cmd.Flags().String("theme", "default", "Color theme (default, catppuccin-mocha)")
	cmd.Flags().String("household", "", "Household ID (overrides assistant.household_id)")
	cmd.Flags().String("user", "", "User ID (overrides assistant.user_id)")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	plain, _ := cmd.Flags().GetBool("plain")
	theme, _ := cmd.Flags().GetString("theme")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if household, _ := cmd.Flags().GetString("household"); household != "" {
		cfg.Assistant.HouseholdID = household
	}
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		cfg.Assistant.UserID = user
	}
	if err := cfg.RequireIdentity(); err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, cleanup, err := newSessionManager(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to start assistant: %w", err)
	}
	defer cleanup()

	session, err := manager.Login(cfg.Assistant.HouseholdID, cfg.Assistant.UserID)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Logout(session.ID()) }()

	if plain {
		prompter := cli.NewCLIPrompter(session, cmd.InOrStdin(), cmd.OutOrStdout())
		err := prompter.Run(ctx)
		prompter.ShowSummary()
		return err
	}

	return tui.Run(ctx, session, tui.WithTheme(theme))
}
