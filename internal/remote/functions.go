package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/service"
)

// MaxHistoryTurns is how many prior turns are sent with a question.
const MaxHistoryTurns = 5

// Answer asks the hosted answer function. History beyond MaxHistoryTurns is
// trimmed to the most recent turns.
func (c *Client) Answer(ctx context.Context, req service.AnswerRequest) (*service.AnswerResponse, error) {
	if len(req.History) > MaxHistoryTurns {
		req.History = req.History[len(req.History)-MaxHistoryTurns:]
	}
	if req.History == nil {
		req.History = []service.HistoryTurn{}
	}

	var resp service.AnswerResponse
	if err := c.postJSON(ctx, answerPath, req, &resp); err != nil {
		return nil, fmt.Errorf("answer function: %w", err)
	}
	return &resp, nil
}

type defenseResponse struct {
	Markdown string `json:"markdown"`
	Error    string `json:"error"`
}

// GenerateDefense asks the hosted function to draft a traffic fine defense and
// returns the markdown document.
func (c *Client) GenerateDefense(ctx context.Context, req service.DefenseRequest) (string, error) {
	var resp defenseResponse
	if err := c.postJSON(ctx, defensePath, req, &resp); err != nil {
		return "", fmt.Errorf("defense function: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("defense function: %w: %s", common.ErrRemoteRejected, resp.Error)
	}
	if strings.TrimSpace(resp.Markdown) == "" {
		return "", fmt.Errorf("defense function: %w", common.ErrEmptyAnswer)
	}
	return resp.Markdown, nil
}

type uploadResponse struct {
	Key       string `json:"Key"`
	PublicURL string `json:"public_url"`
}

// Upload stores the file under a unique object name and returns its public URL.
func (c *Client) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	object := uuid.NewString() + "-" + sanitizeName(name)
	objectPath := path.Join(c.bucket, object)

	var resp uploadResponse
	if err := c.do(ctx, http.MethodPost, uploadPath+objectPath, contentType, r, &resp); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if resp.PublicURL != "" {
		return resp.PublicURL, nil
	}
	return c.baseURL + uploadPath + "public/" + url.PathEscape(c.bucket) + "/" + url.PathEscape(object), nil
}

// sanitizeName keeps the base name and replaces characters unsafe in object keys.
func sanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
