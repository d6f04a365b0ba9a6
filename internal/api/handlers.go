package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/model"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrUnknownSession),
		errors.Is(err, assistant.ErrUnknownMessage),
		errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrNoPendingAction),
		errors.Is(err, assistant.ErrActionInProgress):
		return http.StatusConflict
	case errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrMissingIdentity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var input struct {
		HouseholdID string `json:"household_id"`
		UserID      string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	session, err := s.sessions.Login(input.HouseholdID, input.UserID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"session_id":   session.ID(),
		"household_id": session.HouseholdID(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(chi.URLParam(r, "sessionID")); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*assistant.Session, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondFailure(w, r, err)
		return nil, false
	}
	return session, true
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages":         session.Messages(),
		"interview_active": session.InterviewActive(),
	})
}

// handleSendMessage accepts JSON {"text": ...} or a multipart form with a
// "file" part and an optional "text" caption.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.handleUpload(w, r, session)
		return
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reply, err := session.Send(r.Context(), input.Text)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, session *assistant.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reply, err := session.Upload(r.Context(), header.Filename, contentType, file, r.FormValue("text"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	result, err := session.Confirm(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	body := map[string]any{
		"status":   result.Status,
		"messages": result.Messages,
	}
	if result.Err != nil {
		slog.Warn("Confirmed action failed", "session_id", session.ID(), "error", result.Err)
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	notice, err := session.Cancel(chi.URLParam(r, "messageID"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, notice)
}

type cardView struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	ClosingDay     int             `json:"closing_day"`
	DueDay         int             `json:"due_day"`
	IsShared       bool            `json:"is_shared"`
}

func newCardView(c model.CreditCard) cardView {
	return cardView{
		ID:             c.ID,
		Name:           c.Name,
		CreditLimit:    c.CreditLimit,
		CurrentBalance: c.CurrentBalance,
		ClosingDay:     c.ClosingDay,
		DueDay:         c.DueDay,
		IsShared:       c.IsShared,
	}
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))

	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	txns, err := s.cards.ListCardTransactions(ctx, cardID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	now := s.now()
	respondJSON(w, http.StatusOK, map[string]any{
		"card":   newCardView(*card),
		"usage":  credit.Occupancy(*card, txns, now),
		"series": credit.BuildSeries(*card, txns, now),
	})
}
