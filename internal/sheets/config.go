// Package sheets exports card limit projections to Google Sheets.
package sheets

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAuth means neither OAuth2 credentials nor a service account were given.
	ErrNoAuth = errors.New("no Google Sheets authentication configured")
	// ErrAmbiguousAuth means both OAuth2 and a service account were given.
	ErrAmbiguousAuth = errors.New("configure either OAuth2 or a service account, not both")
)

// Config controls how projection reports reach a spreadsheet.
type Config struct {
	// OAuth2: client credentials plus a refresh token or a saved token file.
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenFile    string

	ServiceAccountPath string

	// SpreadsheetID targets an existing spreadsheet; otherwise one named
	// SpreadsheetName is created.
	SpreadsheetID   string
	SpreadsheetName string
	TimeZone        string

	BatchSize        int
	RetryAttempts    int
	RetryDelay       time.Duration
	EnableFormatting bool
}

// DefaultConfig returns the export defaults for a Brazilian household.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Casa - Projeção de cartões",
		TimeZone:         "America/Sao_Paulo",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

func (c *Config) usesOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && (c.RefreshToken != "" || c.TokenFile != "")
}

// Validate requires exactly one authentication method and sane batching.
func (c *Config) Validate() error {
	switch oauth, sa := c.usesOAuth(), c.ServiceAccountPath != ""; {
	case !oauth && !sa:
		return ErrNoAuth
	case oauth && sa:
		return ErrAmbiguousAuth
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("retry settings cannot be negative (attempts %d, delay %s)", c.RetryAttempts, c.RetryDelay)
	}
	return nil
}
