package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/testutil"
	"github.com/Veraticus/casa/internal/testutil/household"
)

var sessionStart = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func seededDB(t *testing.T) *testutil.TestDB {
	t.Helper()
	return testutil.SetupTestDBWithHousehold(t, func(b *household.Builder) *household.Builder {
		return b.
			WithTask(household.Task("Conta de luz").Category(model.CategoryUtilities).DueIn(sessionStart, 3)).
			WithTask(household.Task("Conta de água").Category(model.CategoryUtilities).DueIn(sessionStart, 5))
	})
}

func login(t *testing.T, m *SessionManager) *Session {
	t.Helper()
	s, err := m.Login(household.DefaultID, "user-1")
	require.NoError(t, err)
	return s
}

func taskStatus(t *testing.T, db *testutil.TestDB, id string) model.TaskStatus {
	t.Helper()
	task, err := db.Storage.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task.Status
}

func TestSession_ConfirmRespectsExpiry(t *testing.T) {
	db := seededDB(t)
	clock := newTestClock(sessionStart)
	s := login(t, newTestManager(t, db, clock, nil))
	ctx := context.Background()

	luz, err := s.Send(ctx, "paguei a conta de luz")
	require.NoError(t, err)
	require.NotNil(t, luz.PendingAction)
	assert.Equal(t, sessionStart.Add(5*time.Minute), luz.PendingAction.ExpiresAt)

	agua, err := s.Send(ctx, "paguei a conta de água")
	require.NoError(t, err)
	require.NotNil(t, agua.PendingAction)

	clock.Set(sessionStart.Add(4*time.Minute + 59*time.Second))
	result, err := s.Confirm(ctx, luz.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, result.Status)
	assert.Equal(t, model.TaskCompleted, taskStatus(t, db, luz.PendingAction.TaskID))

	clock.Set(sessionStart.Add(5*time.Minute + time.Second))
	result, err = s.Confirm(ctx, agua.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, result.Status)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, model.SenderSystem, result.Messages[0].Sender)
	assert.Equal(t, msgExpired, result.Messages[0].Text)
	assert.Equal(t, model.TaskPending, taskStatus(t, db, agua.PendingAction.TaskID))

	logged, ok := s.Message(agua.ID)
	require.True(t, ok)
	assert.Nil(t, logged.PendingAction)
}

func TestSession_ConfirmWithoutActionIsRejected(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	reply, err := s.Send(ctx, "qual a capital da Mongólia?")
	require.NoError(t, err)
	before := len(s.Messages())

	_, err = s.Confirm(ctx, reply.ID)
	assert.ErrorIs(t, err, ErrNoPendingAction)
	assert.Len(t, s.Messages(), before)

	_, err = s.Confirm(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestSession_ConfirmTwiceExecutesOnce(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	msg, err := s.Send(ctx, "paguei a conta de luz")
	require.NoError(t, err)

	result, err := s.Confirm(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, result.Status)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Pronto! Marcar \"Conta de luz\" como concluída.", result.Messages[0].Text)

	_, err = s.Confirm(ctx, msg.ID)
	assert.ErrorIs(t, err, ErrNoPendingAction)

	s.Wait()
	events, err := db.Storage.ListEvents(ctx, EventActionExecuted, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(model.ActionCompleteTask), events[0].Metadata["type"])
}

func TestSession_FailedActionStaysAttached(t *testing.T) {
	db := seededDB(t)
	answers := &fakeAnswers{respond: func(service.AnswerRequest) (*service.AnswerResponse, error) {
		return &service.AnswerResponse{
			AnswerText:    "Posso concluir essa tarefa.",
			PendingAction: &service.PendingActionDescriptor{Type: model.ActionCompleteTask, TaskID: "missing"},
		}, nil
	}}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) { o.Answers = answers }))
	ctx := context.Background()

	msg, err := s.Send(ctx, "conclui aquela tarefa")
	require.NoError(t, err)
	require.NotNil(t, msg.PendingAction)

	result, err := s.Confirm(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	require.Error(t, result.Err)
	assert.Equal(t, msgActionFailed, lastMessage(t, s).Text)

	logged, ok := s.Message(msg.ID)
	require.True(t, ok)
	assert.NotNil(t, logged.PendingAction, "failed action must remain confirmable")

	events, err := db.Storage.ListEvents(ctx, EventActionExecuted, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSession_Cancel(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	clarify, err := s.Send(ctx, "paguei a academia")
	require.NoError(t, err)
	require.NotEmpty(t, clarify.Suggestions)

	notice, err := s.Cancel(clarify.ID)
	require.NoError(t, err)
	assert.Equal(t, msgCancelled, notice.Text)
	assert.Equal(t, model.SenderSystem, notice.Sender)

	logged, _ := s.Message(clarify.ID)
	assert.Empty(t, logged.Suggestions)

	proposal, err := s.Send(ctx, "paguei a conta de luz")
	require.NoError(t, err)
	_, err = s.Cancel(proposal.ID)
	require.NoError(t, err)

	_, err = s.Confirm(ctx, proposal.ID)
	assert.ErrorIs(t, err, ErrNoPendingAction)
	assert.Equal(t, model.TaskPending, taskStatus(t, db, db.Household.MustTask(t, "Conta de luz").ID))

	_, err = s.Cancel("nope")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestSession_TrafficFineCreatesVehicleTask(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	msg, err := s.Send(ctx, "chegou uma multa de R$ 195,23")
	require.NoError(t, err)
	require.NotNil(t, msg.PendingAction)

	result, err := s.Confirm(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExecuted, result.Status)

	vehicle := model.CategoryVehicle
	tasks, err := db.Storage.ListTasks(ctx, household.DefaultID, service.TaskFilter{Category: &vehicle})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	fine := tasks[0]
	assert.Equal(t, model.HealthRisk, fine.HealthStatus)
	assert.Equal(t, model.ImpactHigh, fine.ImpactLevel)
	assert.Equal(t, "195.23", fine.Amount.StringFixed(2))
	require.NotNil(t, fine.DueDate)
	assert.True(t, model.StartOfDay(sessionStart).Equal(*fine.DueDate))
}

func TestSession_DeductionIsSaved(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	msg, err := s.Send(ctx, "quero deduzir a mensalidade da escola de R$ 1.200,00")
	require.NoError(t, err)
	require.NotNil(t, msg.PendingAction)

	_, err = s.Confirm(ctx, msg.ID)
	require.NoError(t, err)

	deductions, err := db.Storage.ListDeductions(ctx, household.DefaultID, 2026)
	require.NoError(t, err)
	require.Len(t, deductions, 1)
	assert.Equal(t, model.DeductionEducation, deductions[0].Category)
	assert.Equal(t, "1200.00", deductions[0].Amount.StringFixed(2))
}

func TestSession_DefenseInterview(t *testing.T) {
	db := seededDB(t)
	defense := &fakeDefense{markdown: "# Defesa prévia\n\nSenhor(a) julgador(a)..."}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) { o.Defense = defense }))
	ctx := context.Background()

	proposal, err := s.Send(ctx, "quero recorrer da multa de R$ 293,47")
	require.NoError(t, err)
	require.NotNil(t, proposal.PendingAction)
	require.Equal(t, model.ActionAnalyzeDefense, proposal.PendingAction.Type)

	result, err := s.Confirm(ctx, proposal.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExecuted, result.Status)
	first := result.Messages[0]
	assert.Contains(t, first.Text, DefenseQuestions[0])
	assert.Equal(t, []string{chipYes, chipNo}, first.Suggestions)
	assert.True(t, s.InterviewActive())

	reask, err := s.Send(ctx, "talvez")
	require.NoError(t, err)
	assert.Contains(t, reask.Text, msgYesNo)
	assert.Contains(t, reask.Text, DefenseQuestions[0])

	replies := []string{"Sim", "não", "sim", "n", "Sim"}
	var last model.Message
	for i, reply := range replies {
		last, err = s.Send(ctx, reply)
		require.NoError(t, err)
		if i < len(replies)-1 {
			assert.Equal(t, DefenseQuestions[i+1], last.Text)
		}
	}
	assert.False(t, s.InterviewActive())
	assert.Equal(t, msgInterviewDone, last.Text)
	require.NotNil(t, last.PendingAction)
	payload, ok := last.PendingAction.Payload.(model.GenerateDefensePayload)
	require.True(t, ok)
	require.Len(t, payload.Answers, len(DefenseQuestions))
	assert.Equal(t, []bool{true, false, true, false, true}, []bool{
		payload.Answers[0].Answer, payload.Answers[1].Answer, payload.Answers[2].Answer,
		payload.Answers[3].Answer, payload.Answers[4].Answer,
	})
	assert.Equal(t, "293.47", payload.Fine.Amount.StringFixed(2))

	result, err = s.Confirm(ctx, last.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExecuted, result.Status)
	assert.True(t, strings.HasPrefix(result.Messages[0].Text, "# Defesa prévia"))
	require.Len(t, defense.got, 1)
	assert.Len(t, defense.got[0].UserAnswers, len(DefenseQuestions))
}

func TestSession_DefenseFailureIsRecoverable(t *testing.T) {
	db := seededDB(t)
	defense := &fakeDefense{err: errors.New("timeout")}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) { o.Defense = defense }))
	ctx := context.Background()

	proposal, err := s.Send(ctx, "quero recorrer da multa")
	require.NoError(t, err)
	_, err = s.Confirm(ctx, proposal.ID)
	require.NoError(t, err)
	var final model.Message
	for range DefenseQuestions {
		final, err = s.Send(ctx, "sim")
		require.NoError(t, err)
	}
	require.NotNil(t, final.PendingAction)

	result, err := s.Confirm(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, msgDefenseFailed, result.Messages[0].Text)

	logged, _ := s.Message(final.ID)
	assert.NotNil(t, logged.PendingAction)

	defense.err = nil
	defense.markdown = "# Defesa"
	result, err = s.Confirm(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, result.Status)
}

func TestSession_CancelAbortsInterview(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	proposal, err := s.Send(ctx, "quero recorrer da multa")
	require.NoError(t, err)
	result, err := s.Confirm(ctx, proposal.ID)
	require.NoError(t, err)
	require.True(t, s.InterviewActive())

	_, err = s.Cancel(result.Messages[0].ID)
	require.NoError(t, err)
	assert.False(t, s.InterviewActive())

	reply, err := s.Send(ctx, "sim")
	require.NoError(t, err)
	assert.NotEqual(t, DefenseQuestions[1], reply.Text)
}

func TestSession_SnapshotInvalidatedAfterMutation(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	ctx := context.Background()

	status, err := s.Send(ctx, "quais minhas pendencias?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(status.Text, "Você tem 2 tarefas pendentes"), status.Text)

	proposal, err := s.Send(ctx, "paguei a conta de luz")
	require.NoError(t, err)
	_, err = s.Confirm(ctx, proposal.ID)
	require.NoError(t, err)

	status, err = s.Send(ctx, "quais minhas pendencias?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(status.Text, "Você tem 1 tarefa pendente"), status.Text)
}

func TestSession_HistoryIsBounded(t *testing.T) {
	db := seededDB(t)
	answers := &fakeAnswers{respond: func(req service.AnswerRequest) (*service.AnswerResponse, error) {
		return &service.AnswerResponse{AnswerText: "resposta para " + req.Question}, nil
	}}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) { o.Answers = answers }))
	ctx := context.Background()

	_, err := s.Send(ctx, "primeira")
	require.NoError(t, err)
	assert.Empty(t, answers.last().History)

	for i := 2; i <= 5; i++ {
		_, err := s.Send(ctx, fmt.Sprintf("pergunta %d", i))
		require.NoError(t, err)
	}

	history := answers.last().History
	require.Len(t, history, DefaultHistoryTurns)
	assert.Equal(t, service.HistoryTurn{Role: "assistant", Text: "resposta para pergunta 4"}, history[len(history)-1])
	assert.Equal(t, service.HistoryTurn{Role: "user", Text: "pergunta 4"}, history[len(history)-2])
	assert.Equal(t, service.HistoryTurn{Role: "assistant", Text: "resposta para pergunta 2"}, history[0])
}

func TestSession_Upload(t *testing.T) {
	db := seededDB(t)
	files := &fakeFiles{url: "https://files.example/multa.jpg"}
	answers := &fakeAnswers{respond: func(req service.AnswerRequest) (*service.AnswerResponse, error) {
		return &service.AnswerResponse{AnswerText: "Li a notificação."}, nil
	}}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) {
		o.Files = files
		o.Answers = answers
	}))
	ctx := context.Background()

	reply, err := s.Upload(ctx, "multa.jpg", "image/jpeg", strings.NewReader("jpeg"), "")
	require.NoError(t, err)
	assert.Equal(t, "Li a notificação.", reply.Text)
	assert.Equal(t, "jpeg", files.body)
	assert.Equal(t, "https://files.example/multa.jpg", answers.last().ImageURL)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "https://files.example/multa.jpg", msgs[0].ImageURL)

	files.err = errors.New("bucket full")
	reply, err = s.Upload(ctx, "x.pdf", "application/pdf", strings.NewReader("pdf"), "boleto")
	require.NoError(t, err)
	assert.Equal(t, msgUploadFailed, reply.Text)
	assert.Len(t, s.Messages(), 3)
}

func TestSession_SendRejectsEmpty(t *testing.T) {
	db := seededDB(t)
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), nil))
	_, err := s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, s.Messages())
}

func TestSessionManager_Lifecycle(t *testing.T) {
	db := seededDB(t)
	m := newTestManager(t, db, newTestClock(sessionStart), nil)

	_, err := m.Login("", "user")
	assert.ErrorIs(t, err, ErrMissingIdentity)

	s := login(t, m)
	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Logout(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, m.Logout(s.ID()), ErrUnknownSession)

	_, err = NewManager(Options{})
	assert.ErrorIs(t, err, ErrMissingStore)
}

type blockingAudit struct {
	release chan struct{}
	logged  chan string
}

func (a *blockingAudit) LogEvent(ctx context.Context, name string, _ map[string]any) error {
	<-a.release
	if err := ctx.Err(); err != nil {
		return err
	}
	a.logged <- name
	return nil
}

func TestSession_ConfirmDoesNotWaitForAudit(t *testing.T) {
	db := seededDB(t)
	audit := &blockingAudit{release: make(chan struct{}), logged: make(chan string, 1)}
	s := login(t, newTestManager(t, db, newTestClock(sessionStart), func(o *Options) {
		o.Audit = audit
	}))

	msg, err := s.Send(context.Background(), "paguei a conta de luz")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ExecutionResult, 1)
	go func() {
		result, confirmErr := s.Confirm(ctx, msg.ID)
		assert.NoError(t, confirmErr)
		done <- result
	}()

	select {
	case result := <-done:
		assert.Equal(t, StatusExecuted, result.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("Confirm blocked on the audit sink")
	}
	assert.Empty(t, audit.logged)

	// The request ending must not cancel the pending audit write.
	cancel()
	close(audit.release)
	s.Wait()
	assert.Equal(t, EventActionExecuted, <-audit.logged)
}
