// Package assistant turns chat text into answers and confirmable actions and
// runs the confirmation protocol over a per-session message log.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/intent"
	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/money"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/textnorm"
)

// Fact keys shared by differently worded questions with the same intent.
const (
	FactKeyIRDeadline = "ir_deadline"
	FactKeyIRRefund   = "ir_refund"
)

// maxClarifyChips bounds the suggestions offered when no task matches.
const maxClarifyChips = 3

var actionSummaries = map[model.ActionType]string{
	model.ActionCompleteTask:    "Concluir tarefa",
	model.ActionSaveDeduction:   "Salvar despesa dedutível",
	model.ActionAddTrafficFine:  "Registrar multa de trânsito",
	model.ActionAnalyzeDefense:  "Analisar defesa da multa",
	model.ActionGenerateDefense: "Gerar defesa da multa",
	model.ActionUpdateTask:      "Atualizar tarefa",
}

// Conversation is the context a message is resolved in.
type Conversation struct {
	Household   HouseholdSource
	HouseholdID string
	UserID      string
	Domain      string
	ImageURL    string
	History     []service.HistoryTurn
}

// ResolverConfig wires a Resolver. Answers and Cache may be nil.
type ResolverConfig struct {
	Answers   service.AnswerClient
	Cache     *knowledge.Cache
	Validator *knowledge.Validator
	Matcher   *knowledge.Matcher
	Picker    Picker
	Now       func() time.Time
	NewID     func() string
}

// Resolver drafts the reply to a user message. It never mutates state.
type Resolver struct {
	answers   service.AnswerClient
	cache     *knowledge.Cache
	validator *knowledge.Validator
	matcher   *knowledge.Matcher
	picker    Picker
	now       func() time.Time
	newID     func() string
}

// NewResolver fills unset fields of cfg with defaults.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		answers:   cfg.Answers,
		cache:     cfg.Cache,
		validator: cfg.Validator,
		matcher:   cfg.Matcher,
		picker:    cfg.Picker,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if r.validator == nil {
		r.validator = knowledge.DefaultValidator()
	}
	if r.matcher == nil {
		r.matcher = knowledge.NewMatcher(knowledge.DefaultCorpus())
	}
	if r.picker == nil {
		r.picker = NewRandomPicker(uint64(time.Now().UnixNano()))
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r
}

// Resolve drafts the assistant reply to text: cached knowledge, then the remote
// answer function, then the local FAQ, then intent handlers.
func (r *Resolver) Resolve(ctx context.Context, conv Conversation, text string) model.Message {
	in := intent.Classify(text)

	if msg, ok := r.fromCache(ctx, conv, text, in); ok {
		return msg
	}
	if msg, ok := r.fromRemote(ctx, conv, text, in); ok {
		return msg
	}
	if msg, ok := r.fromFAQ(text); ok {
		return msg
	}
	return r.handleIntent(ctx, conv, text, in)
}

func factKeyFor(in model.Intent) string {
	switch in {
	case model.IntentIRDeadline:
		return FactKeyIRDeadline
	case model.IntentIRRefund:
		return FactKeyIRRefund
	default:
		return ""
	}
}

func (r *Resolver) message(text string) model.Message {
	return model.Message{
		ID:        r.newID(),
		Text:      text,
		Sender:    model.SenderAssistant,
		Timestamp: r.now(),
	}
}

func (r *Resolver) fromCache(ctx context.Context, conv Conversation, text string, in model.Intent) (model.Message, bool) {
	if r.cache == nil || conv.ImageURL != "" {
		return model.Message{}, false
	}
	fact := r.cache.Get(ctx, conv.Domain, text, factKeyFor(in))
	if fact == nil {
		return model.Message{}, false
	}

	msg := r.message(fact.AnswerText)
	msg.AnswerJSON = fact.AnswerJSON
	msg.Sources = fact.Sources
	msg.ConfidenceLevel = fact.ConfidenceLevel
	msg.IsCached = true
	return msg, true
}

func (r *Resolver) fromRemote(ctx context.Context, conv Conversation, text string, in model.Intent) (model.Message, bool) {
	if r.answers == nil {
		return model.Message{}, false
	}

	resp, err := r.answers.Answer(ctx, service.AnswerRequest{
		Question:    text,
		HouseholdID: conv.HouseholdID,
		UserID:      conv.UserID,
		Domain:      conv.Domain,
		ImageURL:    conv.ImageURL,
		History:     conv.History,
	})
	if err != nil {
		slog.Warn("Remote answer failed, falling back", "intent", in, "error", err)
		return model.Message{}, false
	}
	if resp == nil || strings.TrimSpace(resp.AnswerText) == "" {
		return model.Message{}, false
	}

	if resp.IsKnowledge() && !r.acceptKnowledge(ctx, conv, text, in, resp) {
		return model.Message{}, false
	}

	msg := r.message(resp.AnswerText)
	msg.AnswerJSON = resp.KeyFacts
	msg.Sources = resp.Sources
	msg.ConfidenceLevel = resp.ConfidenceLevel
	msg.IsCached = resp.IsCached

	if desc := resp.PendingAction; desc != nil {
		action, err := r.actionFromDescriptor(desc)
		if err != nil {
			slog.Warn("Ignoring malformed pending action", "type", desc.Type, "error", err)
		} else {
			msg.PendingAction = action
		}
	}
	return msg, true
}

// acceptKnowledge validates a knowledge answer and caches it. It reports false
// when the answer must not be served.
func (r *Resolver) acceptKnowledge(ctx context.Context, conv Conversation, text string, in model.Intent, resp *service.AnswerResponse) bool {
	candidate := knowledge.Candidate{
		AnswerText:      resp.AnswerText,
		AnswerJSON:      resp.KeyFacts,
		Sources:         resp.Sources,
		ConfidenceLevel: resp.ConfidenceLevel,
	}

	if r.cache == nil || resp.IsCached || conv.ImageURL != "" {
		if verdict := r.validator.Validate(candidate); !verdict.OK {
			slog.Info("Remote answer rejected", "reason", verdict.Reason, "detail", verdict.Detail)
			return false
		}
		return true
	}

	_, err := r.cache.Save(ctx, conv.Domain, text, factKeyFor(in), resp.Model, candidate)
	var rejection *knowledge.RejectionError
	switch {
	case errors.As(err, &rejection):
		slog.Info("Remote answer rejected", "reason", rejection.Verdict.Reason, "detail", rejection.Verdict.Detail)
		return false
	case err != nil:
		slog.Warn("Failed to cache remote answer", "error", err)
	}
	return true
}

func (r *Resolver) actionFromDescriptor(desc *service.PendingActionDescriptor) (*model.PendingAction, error) {
	payload, err := model.DecodePayload(desc.Type, desc.Payload)
	if err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(desc.Summary)
	if summary == "" {
		summary = actionSummaries[desc.Type]
	}
	return model.NewPendingAction(r.newID(), desc.TaskID, summary, payload, r.now())
}

func (r *Resolver) fromFAQ(text string) (model.Message, bool) {
	item, ok := r.matcher.FindBestMatch(text)
	if !ok {
		return model.Message{}, false
	}
	return r.message(pick(r.picker, leadIns) + " " + item.Answer + "\n\n" + disclaimer), true
}

func (r *Resolver) handleIntent(ctx context.Context, conv Conversation, text string, in model.Intent) model.Message {
	switch in {
	case model.IntentStatusReport:
		return r.withHousehold(ctx, conv, r.statusReport)
	case model.IntentFinancialStatus:
		return r.withHousehold(ctx, conv, r.financialStatus)
	case model.IntentActionProposal:
		return r.withHousehold(ctx, conv, func(h *Household) model.Message {
			return r.proposeCompletion(h, text)
		})
	case model.IntentUpload:
		return r.message(msgUploadGuidance)
	case model.IntentTrafficAnalysis:
		return r.trafficFine(conv, text)
	case model.IntentIRDeduction:
		return r.deduction(text)
	default:
		return r.nonAnswer()
	}
}

func (r *Resolver) nonAnswer() model.Message {
	return r.message(pick(r.picker, nonAnswers))
}

func (r *Resolver) withHousehold(ctx context.Context, conv Conversation, fn func(*Household) model.Message) model.Message {
	if conv.Household == nil {
		return r.nonAnswer()
	}
	h, err := conv.Household.Household(ctx)
	if err != nil {
		slog.Warn("Failed to load household snapshot", "household_id", conv.HouseholdID, "error", err)
		return r.nonAnswer()
	}
	return fn(h)
}

func (r *Resolver) statusReport(h *Household) model.Message {
	now := r.now()
	if len(h.OpenTasks) == 0 {
		return r.message(msgNoOpenTasks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Você tem %d %s", len(h.OpenTasks), plural(len(h.OpenTasks), "tarefa pendente", "tarefas pendentes"))
	if overdue := h.Overdue(now); len(overdue) > 0 {
		fmt.Fprintf(&b, ", sendo %d %s", len(overdue), plural(len(overdue), "atrasada", "atrasadas"))
	}
	b.WriteString(".")
	if next, ok := h.NextDue(now); ok {
		fmt.Fprintf(&b, " A próxima é \"%s\", com vencimento em %s.", next.Title, next.DueDate.Format("02/01"))
	}
	return r.message(b.String())
}

func (r *Resolver) financialStatus(h *Household) model.Message {
	now := r.now()
	var parts []string

	if income := h.MonthlyIncome(now); income.IsPositive() {
		parts = append(parts, fmt.Sprintf("Renda do mês: %s.", money.FormatBRL(income)))
	}
	if len(h.Cards) > 0 {
		s := credit.Summarize(h.Cards, h.CardTxns, now)
		line := fmt.Sprintf("Cartões: %s comprometidos", money.FormatBRL(s.TotalOccupied))
		if s.TotalLimit.IsPositive() {
			line += fmt.Sprintf(" de %s de limite", money.FormatBRL(s.TotalLimit))
		}
		parts = append(parts, line+".")
	}
	for _, g := range h.Goals {
		parts = append(parts, fmt.Sprintf("Meta \"%s\": %s%% (%s de %s).",
			g.Name, g.Progress().Round(0).String(), money.FormatBRL(g.CurrentAmount), money.FormatBRL(g.TargetAmount)))
	}

	if len(parts) == 0 {
		return r.message("Ainda não há renda, cartões ou metas cadastrados para a sua casa.")
	}
	return r.message(strings.Join(parts, "\n"))
}

// proposeCompletion ranks open tasks by title containment. The first task in
// list order wins a tie.
func (r *Resolver) proposeCompletion(h *Household, text string) model.Message {
	if len(h.OpenTasks) == 0 {
		return r.message(msgNoOpenTasks)
	}

	query := textnorm.Normalize(text)
	bestScore := 0
	var best model.Task
	for _, t := range h.OpenTasks {
		if score := matchScore(query, textnorm.Normalize(t.Title)); score > bestScore {
			best, bestScore = t, score
		}
	}

	if bestScore == 0 {
		msg := r.message(msgClarify)
		for i, t := range h.OpenTasks {
			if i == maxClarifyChips {
				break
			}
			msg.Suggestions = append(msg.Suggestions, "Concluir "+t.Title)
		}
		return msg
	}

	summary := fmt.Sprintf("Marcar \"%s\" como concluída", best.Title)
	action, err := model.NewPendingAction(r.newID(), best.ID, summary, model.CompleteTaskPayload{}, r.now())
	if err != nil {
		slog.Error("Failed to build completion action", "task_id", best.ID, "error", err)
		return r.nonAnswer()
	}
	msg := r.message(fmt.Sprintf("Encontrei a tarefa \"%s\". Quer que eu marque como concluída?", best.Title))
	msg.PendingAction = action
	return msg
}

func matchScore(query, title string) int {
	if query == "" || title == "" {
		return 0
	}
	if strings.Contains(query, title) || strings.Contains(title, query) {
		return 100
	}
	return 0
}

func (r *Resolver) trafficFine(conv Conversation, text string) model.Message {
	now := r.now()
	amount, hasAmount := parseAmount(text)

	fine := model.TrafficFinePayload{
		Amount:      amount,
		Description: "Multa de trânsito",
		Plate:       parsePlate(text),
		NoticeURL:   conv.ImageURL,
	}
	if due, ok := parseDate(text, now.Location()); ok {
		fine.DueDate = due
	}
	if fine.Plate != "" {
		fine.Description += " - placa " + fine.Plate
	}

	if wantsDefense(text) {
		action, err := model.NewPendingAction(r.newID(), "", actionSummaries[model.ActionAnalyzeDefense],
			model.AnalyzeDefensePayload{Fine: fine}, now)
		if err != nil {
			slog.Error("Failed to build defense action", "error", err)
			return r.nonAnswer()
		}
		msg := r.message("Posso te ajudar a avaliar uma defesa prévia. Quer responder algumas perguntas rápidas sobre a autuação?")
		msg.PendingAction = action
		return msg
	}

	if !hasAmount {
		return r.message(msgFineGuidance)
	}

	summary := fmt.Sprintf("Registrar multa de %s", money.FormatBRL(amount))
	action, err := model.NewPendingAction(r.newID(), "", summary, fine, now)
	if err != nil {
		slog.Error("Failed to build fine action", "error", err)
		return r.nonAnswer()
	}
	msg := r.message(fmt.Sprintf("Entendi, uma multa de %s. Quer que eu crie uma tarefa para acompanhar o pagamento?", money.FormatBRL(amount)))
	msg.PendingAction = action
	return msg
}

func (r *Resolver) deduction(text string) model.Message {
	amount, hasAmount := parseAmount(text)
	category, hasCategory := deductionCategory(text)
	if !hasAmount || !hasCategory {
		return r.message(msgDeductionHelp)
	}

	now := r.now()
	label := deductionLabels[category]
	payload := model.DeductionPayload{
		Date:        model.StartOfDay(now),
		Amount:      amount,
		Description: label,
		Category:    category,
	}
	summary := fmt.Sprintf("Guardar %s de %s para o IR", strings.ToLower(label), money.FormatBRL(amount))
	action, err := model.NewPendingAction(r.newID(), "", summary, payload, now)
	if err != nil {
		slog.Error("Failed to build deduction action", "error", err)
		return r.nonAnswer()
	}
	msg := r.message(fmt.Sprintf("%s de %s pode ser dedutível. Quer que eu guarde para a declaração?", label, money.FormatBRL(amount)))
	msg.PendingAction = action
	return msg
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
