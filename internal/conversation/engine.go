// Package conversation drives one phone call: it replays the transcript
// to the language model, extracts action tags from the reply, dispatches
// them to the slot negotiator and rewrites the reply into the spoken
// prompt. A turn always produces something to say; dispatch failures are
// contained and voiced as an apology.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mlaurent/clinic-voice-agent/internal/intent"
	"github.com/mlaurent/clinic-voice-agent/internal/observability/metrics"
	"github.com/mlaurent/clinic-voice-agent/internal/schedule"
	"github.com/mlaurent/clinic-voice-agent/internal/scheduling"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

var conversationTracer = otel.Tracer("clinic.internal.conversation")

// Call outcome labels recorded on the session.
const (
	CallOutcomeBooked    = "booked"
	CallOutcomeCancelled = "cancelled"
	CallOutcomeMoved     = "moved"
	CallOutcomeAbandoned = "abandoned"
	CallOutcomeCompleted = "completed"
)

// EngineConfig carries the tunables of the turn orchestrator.
type EngineConfig struct {
	PracticeName   string
	HoursSpec      string
	ModelID        string
	MaxTokens      int32
	LLMTimeout     time.Duration
	MaxSilentTurns int
	Location       *time.Location
}

// Engine is the per-call state machine: greeting on call start, then a
// loop of caller utterance to spoken reply until the caller hangs up or
// goes silent past the retry budget.
type Engine struct {
	llm        LLMClient
	store      session.Store
	negotiator *scheduling.Negotiator
	cfg        EngineConfig
	metrics    *metrics.CallMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// NewEngine constructs a conversation engine.
func NewEngine(llm LLMClient, store session.Store, negotiator *scheduling.Negotiator, cfg EngineConfig, m *metrics.CallMetrics, logger *logging.Logger) *Engine {
	if llm == nil {
		panic("conversation: llm client required")
	}
	if store == nil {
		panic("conversation: session store required")
	}
	if negotiator == nil {
		panic("conversation: negotiator required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 15 * time.Second
	}
	if cfg.MaxSilentTurns <= 0 {
		cfg.MaxSilentTurns = 2
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		llm:        llm,
		store:      store,
		negotiator: negotiator,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// StartCall initializes the session for an answered call and returns
// the greeting to speak.
func (e *Engine) StartCall(ctx context.Context, callID, callerPhone string) (string, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.start_call")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.call_id", callID))

	now := e.now().In(e.cfg.Location)
	sess := &session.CallSession{
		CallID:         callID,
		CallerPhone:    callerPhone,
		Status:         session.StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := e.store.Save(ctx, sess); err != nil {
		span.RecordError(err)
		return "", err
	}

	greeting := Greeting(e.cfg.PracticeName)
	e.appendTranscript(ctx, callID, session.RoleAssistant, greeting)
	e.logger.Info("call started", "call_id", callID, "caller", logging.MaskPhone(callerPhone))
	return greeting, nil
}

// ProcessTurn handles one caller utterance and returns the next spoken
// prompt, plus whether the call should be hung up. It never fails
// outward: internal errors are logged and voiced as an apology.
func (e *Engine) ProcessTurn(ctx context.Context, callID, utterance string) (string, bool) {
	started := e.now()
	ctx, span := conversationTracer.Start(ctx, "conversation.process_turn")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.call_id", callID))

	sess, err := e.store.Get(ctx, callID)
	if err != nil {
		e.logger.Error("session load failed", "call_id", callID, "error", err)
		e.observeTurn("error", started)
		return apologyPhrase, false
	}
	if sess == nil {
		// Turn for a call we never saw start; recover with a fresh session.
		now := e.now().In(e.cfg.Location)
		sess = &session.CallSession{
			CallID:         callID,
			Status:         session.StatusActive,
			StartedAt:      now,
			LastActivityAt: now,
		}
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return e.handleSilence(ctx, sess, started)
	}
	sess.SilentTurns = 0
	e.appendTranscript(ctx, callID, session.RoleCaller, utterance)

	reply, status := e.respond(ctx, sess)

	e.appendTranscript(ctx, callID, session.RoleAssistant, reply)
	sess.TurnCount++
	sess.LastActivityAt = e.now().In(e.cfg.Location)
	e.save(ctx, sess)
	e.observeTurn(status, started)
	return reply, false
}

// EndCall marks the session ended and returns its final state, or nil
// when the call was never seen.
func (e *Engine) EndCall(ctx context.Context, callID string) (*session.CallSession, error) {
	sess, err := e.store.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	sess.Status = session.StatusEnded
	if sess.Outcome == "" {
		sess.Outcome = CallOutcomeCompleted
	}
	sess.LastActivityAt = e.now().In(e.cfg.Location)
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	e.logger.Info("call ended", "call_id", callID, "outcome", sess.Outcome, "turns", sess.TurnCount)
	return sess, nil
}

func (e *Engine) handleSilence(ctx context.Context, sess *session.CallSession, started time.Time) (string, bool) {
	sess.SilentTurns++
	sess.LastActivityAt = e.now().In(e.cfg.Location)
	if sess.SilentTurns > e.cfg.MaxSilentTurns {
		sess.Status = session.StatusEnded
		sess.Outcome = CallOutcomeAbandoned
		e.save(ctx, sess)
		e.observeTurn("silence_limit", started)
		return goodbyePhrase, true
	}
	e.save(ctx, sess)
	e.observeTurn("silence", started)
	return silencePhrase, false
}

// respond obtains the assistant reply, extracts and dispatches the
// action tag, and composes the spoken prompt.
func (e *Engine) respond(ctx context.Context, sess *session.CallSession) (string, string) {
	raw, err := e.complete(ctx, sess.CallID)
	if err != nil {
		e.logger.Error("assistant reply failed", "call_id", sess.CallID, "error", err)
		return apologyPhrase, "llm_error"
	}

	act, cleaned := intent.Extract(raw)
	if act == nil {
		return cleaned, "ok"
	}
	e.captureCallerDetails(sess, act)

	out, err := e.dispatch(ctx, act, sess)
	if err != nil {
		// The failed intent is discarded; the caller's words stay in the
		// transcript so they can simply restate the request.
		if errors.Is(err, schedule.ErrMalformedDate) || errors.Is(err, schedule.ErrMalformedTime) {
			e.logger.Warn("unusable date in action tag", "call_id", sess.CallID, "error", err)
			return clarifyPhrase, "malformed_date"
		}
		e.logger.Error("calendar dispatch failed", "call_id", sess.CallID, "intent", string(act.Kind), "error", err)
		return apologyPhrase, "calendar_error"
	}

	e.metrics.ObserveOutcome(strings.ToLower(string(act.Kind)), string(out.Kind))
	e.recordCallOutcome(sess, act, out)
	return composeReply(cleaned, outcomePhrase(out)), "ok"
}

// complete replays the transcript to the language model.
func (e *Engine) complete(ctx context.Context, callID string) (string, error) {
	entries, err := e.store.Transcript(ctx, callID)
	if err != nil {
		return "", err
	}
	messages := make([]ChatMessage, 0, len(entries))
	for _, entry := range entries {
		role := ChatRoleUser
		if entry.Role == session.RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: entry.Text})
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()

	llmStarted := e.now()
	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.cfg.ModelID,
		System:      []string{BuildSystemPrompt(e.cfg.PracticeName, e.cfg.HoursSpec, e.now().In(e.cfg.Location))},
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: 0.4,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.ObserveLLMLatency(status, e.now().Sub(llmStarted).Seconds())
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *Engine) dispatch(ctx context.Context, act *intent.Action, sess *session.CallSession) (scheduling.Outcome, error) {
	switch act.Kind {
	case intent.KindCreate:
		return e.negotiator.Reserve(ctx, act, sess)
	case intent.KindDelete:
		return e.negotiator.Cancel(ctx, act, sess)
	case intent.KindUpdate:
		return e.negotiator.Modify(ctx, act, sess)
	case intent.KindCheck:
		return e.negotiator.Check(ctx, act)
	default:
		return scheduling.Outcome{Kind: scheduling.OutcomeNotFound}, nil
	}
}

func (e *Engine) captureCallerDetails(sess *session.CallSession, act *intent.Action) {
	if act.Name != "" {
		sess.PatientName = act.Name
	}
	if act.Reason != "" {
		sess.PatientReason = act.Reason
	}
}

func (e *Engine) recordCallOutcome(sess *session.CallSession, act *intent.Action, out scheduling.Outcome) {
	switch {
	case act.Kind == intent.KindCreate && out.Kind == scheduling.OutcomeConfirmed:
		sess.Outcome = CallOutcomeBooked
	case act.Kind == intent.KindUpdate && out.Kind == scheduling.OutcomeConfirmed:
		sess.Outcome = CallOutcomeMoved
	case act.Kind == intent.KindDelete && out.Kind == scheduling.OutcomeDeleted:
		sess.Outcome = CallOutcomeCancelled
	}
}

func (e *Engine) appendTranscript(ctx context.Context, callID, role, text string) {
	entry := session.TranscriptEntry{Role: role, Text: text, Timestamp: e.now().UTC()}
	if err := e.store.AppendTranscript(ctx, callID, entry); err != nil {
		e.logger.Error("transcript append failed", "call_id", callID, "error", err)
	}
}

func (e *Engine) save(ctx context.Context, sess *session.CallSession) {
	if err := e.store.Save(ctx, sess); err != nil {
		e.logger.Error("session save failed", "call_id", sess.CallID, "error", err)
	}
}

func (e *Engine) observeTurn(status string, started time.Time) {
	e.metrics.ObserveTurn(status, e.now().Sub(started).Seconds())
}

// composeReply joins the cleaned assistant text with the spoken outcome
// phrase, dropping the filler when there is a real outcome to announce.
func composeReply(cleaned, phrase string) string {
	if cleaned == "" || cleaned == intent.FillerReply {
		return phrase
	}
	return cleaned + " " + phrase
}
