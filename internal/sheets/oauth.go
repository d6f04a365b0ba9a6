package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// DefaultCallbackAddr is where the interactive flow listens for Google's redirect.
const DefaultCallbackAddr = "localhost:8085"

// authTimeout bounds how long the interactive flow waits for the browser.
const authTimeout = 5 * time.Minute

// ErrNoToken means no token has been saved yet.
var ErrNoToken = errors.New("no saved Google Sheets token, run 'casa auth sheets' first")

// OAuth2Config holds the installed-app OAuth2 settings.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	CallbackAddr string
}

func (c OAuth2Config) oauth2() *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
	if c.CallbackAddr != "" {
		cfg.RedirectURL = "http://" + c.CallbackAddr + "/callback"
	}
	return cfg
}

type callbackResult struct {
	err  error
	code string
}

// callbackHandler receives Google's redirect and reports the first outcome.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	report := func(r callbackResult) {
		once.Do(func() { results <- r })
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case q.Get("state") != state:
			report(callbackResult{err: errors.New("authorization state mismatch")})
		case q.Get("error") != "":
			report(callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("code") == "":
			report(callbackResult{err: errors.New("no authorization code received")})
		default:
			report(callbackResult{code: q.Get("code")})
			_, _ = fmt.Fprint(w, `<html><body><h1>Autenticado!</h1><p>Pode fechar esta janela e voltar ao terminal.</p></body></html>`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `<html><body><h1>Falha na autenticação</h1><p>Tente novamente.</p></body></html>`)
	})
	return mux
}

// AuthenticateOAuth2Interactive runs the browser flow. show receives the URL
// the user must open. The token is saved to TokenFile when one is set.
func AuthenticateOAuth2Interactive(ctx context.Context, config OAuth2Config, show func(authURL string)) (*oauth2.Token, error) {
	if config.CallbackAddr == "" {
		config.CallbackAddr = DefaultCallbackAddr
	}
	oauthConfig := config.oauth2()
	state := uuid.NewString()

	listener, err := net.Listen("tcp", config.CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the OAuth2 callback: %w", err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, results), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serveErr := server.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			results <- callbackResult{err: fmt.Errorf("callback server failed: %w", serveErr)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Error shutting down callback server", "error", err)
		}
	}()

	show(oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("no response from the browser within %s", authTimeout)
	}
	if result.err != nil {
		return nil, result.err
	}

	token, err := oauthConfig.Exchange(ctx, result.code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, token); err != nil {
			return token, err
		}
		slog.Info("Token saved", "file", config.TokenFile)
	}
	return token, nil
}

// LoadToken reads a token saved by the interactive flow.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(filepath.Clean(tokenFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", tokenFile, err)
	}
	return token, nil
}

// saveToken writes token with owner-only permissions.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// savingTokenSource writes every refreshed token back to disk so the next
// export starts from a fresh access token.
type savingTokenSource struct {
	base oauth2.TokenSource
	last *oauth2.Token
	path string
	mu   sync.Mutex
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		if err := saveToken(s.path, token); err != nil {
			slog.Warn("Failed to save refreshed token", "file", s.path, "error", err)
		}
		s.last = token
	}
	return token, nil
}

// fileTokenSource loads the saved token and keeps the file current.
func (c OAuth2Config) fileTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := LoadToken(c.TokenFile)
	if err != nil {
		return nil, err
	}
	base := oauth2.ReuseTokenSource(token, c.oauth2().TokenSource(ctx, token))
	return &savingTokenSource{base: base, last: token, path: c.TokenFile}, nil
}
