package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

// DefaultHistoryTurns is how many prior turns accompany a remote question.
const DefaultHistoryTurns = 5

// ErrEmptyMessage is returned when Send receives only whitespace.
var ErrEmptyMessage = errors.New("empty message")

// sessionDeps are shared by every session of a manager.
type sessionDeps struct {
	resolver     *Resolver
	executor     *Executor
	store        householdReader
	files        service.FileStore
	audit        service.AuditSink
	now          func() time.Time
	newID        func() string
	domain       string
	historyTurns int
}

// Session is one logged-in conversation. Its log only grows; replies are
// appended in the order they complete.
type Session struct {
	deps *sessionDeps

	mu        sync.Mutex
	log       []model.Message
	interview *interview
	inflight  map[string]struct{}

	snapMu    sync.Mutex
	household *Household

	background sync.WaitGroup

	id          string
	householdID string
	userID      string
}

func newSession(id, householdID, userID string, deps *sessionDeps) *Session {
	return &Session{
		deps:        deps,
		id:          id,
		householdID: householdID,
		userID:      userID,
		inflight:    make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// HouseholdID returns the household the session belongs to.
func (s *Session) HouseholdID() string { return s.householdID }

// Messages returns a copy of the log.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.log))
	copy(out, s.log)
	return out
}

// Message returns the logged message with id.
func (s *Session) Message(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.log[i], true
	}
	return model.Message{}, false
}

// Household returns the cached snapshot, loading it on first use.
func (s *Session) Household(ctx context.Context) (*Household, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.household != nil {
		return s.household, nil
	}
	h, err := loadHousehold(ctx, s.deps.store, s.householdID, s.deps.now())
	if err != nil {
		return nil, err
	}
	s.household = h
	return h, nil
}

// Invalidate drops the household snapshot so the next read reloads it.
func (s *Session) Invalidate() {
	s.snapMu.Lock()
	s.household = nil
	s.snapMu.Unlock()
}

// Wait blocks until the session's background audit writes have finished.
func (s *Session) Wait() {
	s.background.Wait()
}

// Send logs the user's text and appends the assistant's reply.
func (s *Session) Send(ctx context.Context, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	history := s.historyLocked()
	s.appendLocked(s.newMessage(model.SenderUser, text))

	if s.interview != nil {
		reply := s.interviewReplyLocked(text)
		s.appendLocked(reply)
		s.mu.Unlock()
		return reply, nil
	}
	s.mu.Unlock()

	reply := s.deps.resolver.Resolve(ctx, s.conversation(history, ""), text)
	s.append(reply)
	return reply, nil
}

// Upload stores a file, logs it with caption and appends the reply to it.
// A failed upload appends an apology instead.
func (s *Session) Upload(ctx context.Context, filename, contentType string, r io.Reader, caption string) (model.Message, error) {
	if s.deps.files == nil {
		reply := s.newMessage(model.SenderAssistant, msgUploadFailed)
		s.append(reply)
		return reply, nil
	}

	url, err := s.deps.files.Upload(ctx, filename, contentType, r)
	if err != nil {
		slog.Warn("Upload failed", "session_id", s.id, "file", filename, "error", err)
		reply := s.newMessage(model.SenderAssistant, msgUploadFailed)
		s.append(reply)
		return reply, nil
	}

	question := strings.TrimSpace(caption)
	if question == "" {
		question = "Enviei o arquivo " + filename
	}

	s.mu.Lock()
	history := s.historyLocked()
	userMsg := s.newMessage(model.SenderUser, question)
	userMsg.ImageURL = url
	s.appendLocked(userMsg)
	s.mu.Unlock()

	reply := s.deps.resolver.Resolve(ctx, s.conversation(history, url), question)
	s.append(reply)
	return reply, nil
}

// Confirm executes the pending action attached to messageID. Handler failures
// are reported in the result and the log, not as an error.
func (s *Session) Confirm(ctx context.Context, messageID string) (ExecutionResult, error) {
	s.mu.Lock()
	idx := s.indexLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return ExecutionResult{}, ErrUnknownMessage
	}
	action := s.log[idx].PendingAction
	if action == nil {
		s.mu.Unlock()
		return ExecutionResult{}, ErrNoPendingAction
	}
	if _, busy := s.inflight[action.ID]; busy {
		s.mu.Unlock()
		return ExecutionResult{}, ErrActionInProgress
	}

	if action.Expired(s.deps.now()) {
		s.log[idx].PendingAction = nil
		s.log[idx].Suggestions = nil
		notice := s.newMessage(model.SenderSystem, msgExpired)
		s.appendLocked(notice)
		s.mu.Unlock()
		return ExecutionResult{Status: StatusExpired, Messages: []model.Message{notice}}, nil
	}
	s.inflight[action.ID] = struct{}{}
	s.mu.Unlock()

	out, err := s.deps.executor.Execute(ctx, s.householdID, messageID, action)

	s.mu.Lock()
	delete(s.inflight, action.ID)
	if err != nil {
		s.mu.Unlock()
		slog.Warn("Action failed", "session_id", s.id, "action_id", action.ID, "type", action.Type, "error", err)
		text := msgActionFailed
		if action.Type == model.ActionGenerateDefense {
			text = msgDefenseFailed
		}
		apology := s.newMessage(model.SenderAssistant, text)
		s.append(apology)
		return ExecutionResult{Status: StatusFailed, Messages: []model.Message{apology}, Err: err}, nil
	}

	if i := s.indexLocked(messageID); i >= 0 {
		s.log[i].PendingAction = nil
		s.log[i].Suggestions = nil
	}
	reply := s.newMessage(model.SenderAssistant, out.text)
	reply.Suggestions = out.suggestions
	if out.interview != nil {
		out.interview.track(reply.ID)
		s.interview = out.interview
	}
	s.appendLocked(reply)
	s.mu.Unlock()

	if out.mutated {
		s.Invalidate()
	}
	if s.deps.audit != nil {
		// The reply is already in the log; the audit must not delay it or
		// die with the caller's request.
		auditCtx := context.WithoutCancel(ctx)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			common.BestEffort(auditCtx, "action-audit", func(ctx context.Context) error {
				return s.deps.audit.LogEvent(ctx, EventActionExecuted, map[string]any{
					"action_id":    action.ID,
					"type":         string(action.Type),
					"task_id":      action.TaskID,
					"household_id": s.householdID,
				})
			})
		}()
	}

	return ExecutionResult{Status: StatusExecuted, Messages: []model.Message{reply}}, nil
}

// Cancel detaches the action and suggestions from messageID, aborts an
// interview started from it and appends a cancellation notice.
func (s *Session) Cancel(messageID string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(messageID)
	if idx < 0 {
		return model.Message{}, ErrUnknownMessage
	}
	s.log[idx].PendingAction = nil
	s.log[idx].Suggestions = nil
	if s.interview != nil && s.interview.owns(messageID) {
		s.interview = nil
	}

	notice := s.newMessage(model.SenderSystem, msgCancelled)
	s.appendLocked(notice)
	return notice, nil
}

// InterviewActive reports whether a defense interview is waiting for a reply.
func (s *Session) InterviewActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interview != nil
}

func (s *Session) interviewReplyLocked(text string) model.Message {
	iv := s.interview
	yes, ok := parseYesNo(text)
	if !ok {
		reply := s.newMessage(model.SenderAssistant, msgYesNo+"\n\n"+iv.question())
		reply.Suggestions = []string{chipYes, chipNo}
		iv.track(reply.ID)
		return reply
	}

	if err := iv.answer(yes); err != nil {
		s.interview = nil
		return s.newMessage(model.SenderAssistant, msgActionFailed)
	}

	if !iv.done() {
		reply := s.newMessage(model.SenderAssistant, iv.question())
		reply.Suggestions = []string{chipYes, chipNo}
		iv.track(reply.ID)
		return reply
	}

	s.interview = nil
	reply := s.newMessage(model.SenderAssistant, msgInterviewDone)
	action, err := model.NewPendingAction(s.deps.newID(), "", actionSummaries[model.ActionGenerateDefense], iv.payload(), s.deps.now())
	if err != nil {
		slog.Error("Failed to build defense generation action", "session_id", s.id, "error", err)
		reply.Text = msgActionFailed
		return reply
	}
	reply.PendingAction = action
	return reply
}

func (s *Session) conversation(history []service.HistoryTurn, imageURL string) Conversation {
	return Conversation{
		Household:   s,
		HouseholdID: s.householdID,
		UserID:      s.userID,
		Domain:      s.deps.domain,
		ImageURL:    imageURL,
		History:     history,
	}
}

// historyLocked returns the last turns of the log as role and text, skipping
// system notices.
func (s *Session) historyLocked() []service.HistoryTurn {
	limit := s.deps.historyTurns
	var turns []service.HistoryTurn
	for i := len(s.log) - 1; i >= 0 && len(turns) < limit; i-- {
		m := s.log[i]
		if m.Sender == model.SenderSystem || m.Text == "" {
			continue
		}
		turns = append(turns, service.HistoryTurn{Role: m.Role(), Text: m.Text})
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}

func (s *Session) newMessage(sender model.Sender, text string) model.Message {
	return model.Message{
		ID:        s.deps.newID(),
		Text:      text,
		Sender:    sender,
		Timestamp: s.deps.now(),
	}
}

func (s *Session) indexLocked(id string) int {
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) append(m model.Message) {
	s.mu.Lock()
	s.appendLocked(m)
	s.mu.Unlock()
}

func (s *Session) appendLocked(m model.Message) {
	s.log = append(s.log, m)
}
