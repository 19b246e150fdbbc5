package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mlaurent/clinic-voice-agent/internal/calendar"
	"github.com/mlaurent/clinic-voice-agent/internal/schedule"
	"github.com/mlaurent/clinic-voice-agent/internal/scheduling"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
)

type scriptedLLM struct {
	replies []string
	err     error
	calls   int
	lastReq LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	reply := s.replies[s.calls%len(s.replies)]
	s.calls++
	return LLMResponse{Text: reply}, nil
}

type failingProvider struct{}

func (failingProvider) ListEvents(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	return nil, errors.New("calendar unreachable")
}
func (failingProvider) SearchEvents(context.Context, time.Time, time.Time, string) ([]calendar.Event, error) {
	return nil, errors.New("calendar unreachable")
}
func (failingProvider) InsertEvent(context.Context, calendar.Event) (string, error) {
	return "", errors.New("calendar unreachable")
}
func (failingProvider) UpdateEvent(context.Context, string, calendar.Event) error {
	return errors.New("calendar unreachable")
}
func (failingProvider) DeleteEvent(context.Context, string) error {
	return errors.New("calendar unreachable")
}

// Monday 2026-03-09 07:00 in Paris.
func testClock(t *testing.T) func() time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	at := time.Date(2026, time.March, 9, 7, 0, 0, 0, loc)
	return func() time.Time { return at }
}

func newTestEngine(t *testing.T, llm LLMClient, provider calendar.Provider) (*Engine, *session.MemoryStore, *calendar.MemoryProvider) {
	t.Helper()
	clock := testClock(t)
	loc := clock().Location()

	var mem *calendar.MemoryProvider
	if provider == nil {
		mem = calendar.NewMemoryProvider()
		provider = mem
	}
	hours, err := schedule.ParseWeeklyHours("Mon-Fri 08:00-18:00, Sat 08:00-12:00")
	if err != nil {
		t.Fatalf("parse hours: %v", err)
	}
	negotiator := scheduling.NewNegotiator(provider, schedule.NewResolver(loc), hours, 30*time.Minute, 16, nil)
	negotiator.WithClock(clock)

	store := session.NewMemoryStore()
	engine := NewEngine(llm, store, negotiator, EngineConfig{
		PracticeName:   "du docteur Laurent",
		HoursSpec:      "Mon-Fri 08:00-18:00, Sat 08:00-12:00",
		ModelID:        "test-model",
		MaxTokens:      512,
		MaxSilentTurns: 2,
		Location:       loc,
	}, nil, nil)
	engine.WithClock(clock)
	return engine, store, mem
}

func TestStartCallGreets(t *testing.T) {
	engine, store, _ := newTestEngine(t, &scriptedLLM{replies: []string{"Bonjour."}}, nil)
	ctx := context.Background()

	greeting, err := engine.StartCall(ctx, "call-1", "+33612345678")
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if !strings.Contains(greeting, "docteur Laurent") {
		t.Fatalf("expected the practice name in the greeting, got %q", greeting)
	}

	sess, err := store.Get(ctx, "call-1")
	if err != nil || sess == nil {
		t.Fatalf("expected a session, got %+v err %v", sess, err)
	}
	if sess.Status != session.StatusActive {
		t.Fatalf("expected active status, got %q", sess.Status)
	}

	entries, _ := store.Transcript(ctx, "call-1")
	if len(entries) != 1 || entries[0].Role != session.RoleAssistant {
		t.Fatalf("expected the greeting in the transcript, got %+v", entries)
	}
}

func TestProcessTurnBooksAppointment(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`Très bien, je vous réserve ce créneau. [CREATE date="2026-03-10" time="09:00" name="Dupont" reason="contrôle"]`,
	}}
	engine, store, provider := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", "+33612345678"); err != nil {
		t.Fatalf("start call: %v", err)
	}
	reply, end := engine.ProcessTurn(ctx, "call-1", "Je voudrais un rendez-vous mardi à neuf heures.")
	if end {
		t.Fatal("a booking turn must not end the call")
	}
	if strings.ContainsAny(reply, "[]") {
		t.Fatalf("spoken reply must not contain brackets: %q", reply)
	}
	if !strings.Contains(reply, "confirmé le mardi 10 mars à 9 heures") {
		t.Fatalf("expected a spoken confirmation, got %q", reply)
	}

	events := provider.All()
	if len(events) != 1 {
		t.Fatalf("expected one booked event, got %d", len(events))
	}
	if events[0].Summary != "Consultation - Dupont" {
		t.Fatalf("expected the caller's name on the event, got %q", events[0].Summary)
	}

	sess, _ := store.Get(ctx, "call-1")
	if sess.PatientName != "Dupont" || sess.Outcome != CallOutcomeBooked {
		t.Fatalf("expected name captured and outcome booked, got %+v", sess)
	}
	if sess.TurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", sess.TurnCount)
	}
	if sess.LastManagedEventID != events[0].ID {
		t.Fatalf("expected session bound to the new event")
	}
}

func TestProcessTurnPlainReplySpokenVerbatim(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Bien sûr, quel jour vous conviendrait ?"}}
	engine, _, provider := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	reply, _ := engine.ProcessTurn(ctx, "call-1", "Je voudrais un rendez-vous.")
	if reply != "Bien sûr, quel jour vous conviendrait ?" {
		t.Fatalf("expected the reply verbatim, got %q", reply)
	}
	if len(provider.All()) != 0 {
		t.Fatal("a tagless reply must not touch the calendar")
	}
}

func TestProcessTurnLLMFailureApologizes(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("model unavailable")}
	engine, store, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	reply, end := engine.ProcessTurn(ctx, "call-1", "Je voudrais un rendez-vous.")
	if end {
		t.Fatal("an LLM failure must not end the call")
	}
	if reply != apologyPhrase {
		t.Fatalf("expected the apology, got %q", reply)
	}

	// The caller's words stay on record so they can simply retry.
	entries, _ := store.Transcript(ctx, "call-1")
	var found bool
	for _, entry := range entries {
		if entry.Role == session.RoleCaller && entry.Text == "Je voudrais un rendez-vous." {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the caller utterance preserved in the transcript")
	}
}

func TestProcessTurnCalendarFailureApologizes(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`D'accord. [CREATE date="2026-03-10" time="09:00"]`}}
	engine, _, _ := newTestEngine(t, llm, failingProvider{})
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	reply, end := engine.ProcessTurn(ctx, "call-1", "Mardi neuf heures.")
	if end || reply != apologyPhrase {
		t.Fatalf("expected the apology, got %q end=%v", reply, end)
	}
}

func TestProcessTurnImpossibleDateAsksClarification(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`D'accord. [CREATE date="2026-02-31" time="09:00"]`}}
	engine, _, provider := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	reply, _ := engine.ProcessTurn(ctx, "call-1", "Le trente et un février.")
	if reply != clarifyPhrase {
		t.Fatalf("expected a clarification request, got %q", reply)
	}
	if len(provider.All()) != 0 {
		t.Fatal("an unusable date must not touch the calendar")
	}
}

func TestProcessTurnSilenceBudget(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Bonjour."}}
	engine, store, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}

	for i := 0; i < 2; i++ {
		reply, end := engine.ProcessTurn(ctx, "call-1", "   ")
		if end {
			t.Fatalf("silent turn %d must not yet end the call", i+1)
		}
		if reply != silencePhrase {
			t.Fatalf("expected the silence prompt, got %q", reply)
		}
	}

	reply, end := engine.ProcessTurn(ctx, "call-1", "")
	if !end {
		t.Fatal("expected the third silent turn to end the call")
	}
	if reply != goodbyePhrase {
		t.Fatalf("expected the goodbye, got %q", reply)
	}

	sess, _ := store.Get(ctx, "call-1")
	if sess.Status != session.StatusEnded || sess.Outcome != CallOutcomeAbandoned {
		t.Fatalf("expected an abandoned ended session, got %+v", sess)
	}
}

func TestProcessTurnSilenceResetOnSpeech(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Bien sûr."}}
	engine, store, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	engine.ProcessTurn(ctx, "call-1", "")
	engine.ProcessTurn(ctx, "call-1", "Allô ?")

	sess, _ := store.Get(ctx, "call-1")
	if sess.SilentTurns != 0 {
		t.Fatalf("expected the silence counter reset, got %d", sess.SilentTurns)
	}
}

func TestProcessTurnUnknownCallRecovers(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Bien sûr, quel jour ?"}}
	engine, store, _ := newTestEngine(t, llm, nil)

	reply, end := engine.ProcessTurn(context.Background(), "call-never-started", "Bonjour.")
	if end || reply == apologyPhrase {
		t.Fatalf("expected a normal reply for an unseen call, got %q end=%v", reply, end)
	}
	sess, _ := store.Get(context.Background(), "call-never-started")
	if sess == nil {
		t.Fatal("expected a session created on the fly")
	}
}

func TestCompleteSendsSystemPromptAndHistory(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"D'accord."}}
	engine, _, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	engine.ProcessTurn(ctx, "call-1", "Je voudrais un rendez-vous.")

	if len(llm.lastReq.System) != 1 || !strings.Contains(llm.lastReq.System[0], "CREATE date=") {
		t.Fatal("expected the tag grammar in the system prompt")
	}
	if !strings.Contains(llm.lastReq.System[0], "lundi 9 mars") {
		t.Fatal("expected the current date in the system prompt")
	}
	if len(llm.lastReq.Messages) != 2 {
		t.Fatalf("expected greeting plus caller turn, got %d messages", len(llm.lastReq.Messages))
	}
	if llm.lastReq.Messages[0].Role != ChatRoleAssistant || llm.lastReq.Messages[1].Role != ChatRoleUser {
		t.Fatalf("unexpected roles: %+v", llm.lastReq.Messages)
	}
}

func TestEndCall(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Bonjour."}}
	engine, store, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	if _, err := engine.StartCall(ctx, "call-1", ""); err != nil {
		t.Fatalf("start call: %v", err)
	}
	sess, err := engine.EndCall(ctx, "call-1")
	if err != nil {
		t.Fatalf("end call: %v", err)
	}
	if sess.Status != session.StatusEnded || sess.Outcome != CallOutcomeCompleted {
		t.Fatalf("expected a completed ended session, got %+v", sess)
	}

	stored, _ := store.Get(ctx, "call-1")
	if stored.Status != session.StatusEnded {
		t.Fatal("expected the ended status persisted")
	}

	missing, err := engine.EndCall(ctx, "call-unknown")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for an unknown call, got %+v err %v", missing, err)
	}
}

func TestFallbackClientUsesSecondary(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("down")}
	secondary := &scriptedLLM{replies: []string{"Bonjour."}}
	client := NewFallbackLLMClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "Bonjour." {
		t.Fatalf("expected the fallback reply, got %q", resp.Text)
	}
}

func TestFrenchDate(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Paris")
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, time.March, 10, 9, 0, 0, 0, loc), "mardi 10 mars à 9 heures"},
		{time.Date(2026, time.March, 10, 9, 30, 0, 0, loc), "mardi 10 mars à 9 heures 30"},
		{time.Date(2026, time.August, 1, 14, 5, 0, 0, loc), "samedi 1 août à 14 heures 05"},
		{time.Date(2026, time.March, 10, 0, 0, 0, 0, loc), "mardi 10 mars"},
	}
	for _, tc := range cases {
		if got := FrenchDate(tc.at); got != tc.want {
			t.Fatalf("FrenchDate(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}
