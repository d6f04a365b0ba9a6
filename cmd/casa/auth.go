package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authorize the Google Sheets export",
		Long: `Run the OAuth2 flow for Google Sheets.

A browser window is needed once. The token is saved to sheets.token_file
and refreshed automatically by later exports.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			addr, _ := cmd.Flags().GetString("callback-addr")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			oauthCfg := cfg.Sheets.OAuth2()
			oauthCfg.CallbackAddr = addr
			if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
				return fmt.Errorf("set sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID / GOOGLE_SHEETS_CLIENT_SECRET) first")
			}

			out := cmd.OutOrStdout()
			show := func(authURL string) {
				fmt.Fprintln(out, cli.FormatInfo("Abra este endereço no navegador para autorizar:"))
				fmt.Fprintln(out, authURL)
				fmt.Fprintln(out, cli.SubtleStyle.Render("Aguardando autorização..."))
			}
			if _, err := sheets.AuthenticateOAuth2Interactive(ctx, oauthCfg, show); err != nil {
				return fmt.Errorf("google sheets authentication failed: %w", err)
			}
			fmt.Fprintln(out, cli.FormatSuccess("Google Sheets autorizado. Token salvo em "+oauthCfg.TokenFile))
			return nil
		},
	}

	cmd.Flags().String("callback-addr", sheets.DefaultCallbackAddr, "Local address for the OAuth2 callback")

	return cmd
}
