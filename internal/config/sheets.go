package config

import (
	"os"

	"github.com/Veraticus/casa/internal/sheets"
)

// SheetsConfig holds the Google Sheets export settings.
type SheetsConfig struct {
	ServiceAccountPath string `mapstructure:"service_account_path"`
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	RefreshToken       string `mapstructure:"refresh_token"`
	TokenFile          string `mapstructure:"token_file"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SpreadsheetName    string `mapstructure:"spreadsheet_name"`
}

// SheetsWriterConfig builds a sheets.Config from c. It follows this precedence:
// 1. values from the config file or CASA_SHEETS_* env vars
// 2. direct environment variables (GOOGLE_SHEETS_*)
// 3. sheets.DefaultConfig
//
// A token file only counts when it exists, so a service account is not
// shadowed by the default token path.
func (c SheetsConfig) SheetsWriterConfig() (sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = firstNonEmpty(c.ServiceAccountPath, ExpandPath(os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	config.ClientID = firstNonEmpty(c.ClientID, os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	config.ClientSecret = firstNonEmpty(c.ClientSecret, os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	config.RefreshToken = firstNonEmpty(c.RefreshToken, os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	config.SpreadsheetID = firstNonEmpty(c.SpreadsheetID, os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	config.SpreadsheetName = firstNonEmpty(c.SpreadsheetName, os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"), config.SpreadsheetName)

	if config.ServiceAccountPath == "" && c.TokenFile != "" {
		if _, err := os.Stat(c.TokenFile); err == nil {
			config.TokenFile = c.TokenFile
		}
	}

	if err := config.Validate(); err != nil {
		return sheets.Config{}, err
	}
	return config, nil
}

// OAuth2 returns the settings for the interactive authorization flow.
func (c SheetsConfig) OAuth2() sheets.OAuth2Config {
	return sheets.OAuth2Config{
		ClientID:     firstNonEmpty(c.ClientID, os.Getenv("GOOGLE_SHEETS_CLIENT_ID")),
		ClientSecret: firstNonEmpty(c.ClientSecret, os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")),
		TokenFile:    c.TokenFile,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
