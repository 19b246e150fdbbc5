package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mlaurent/clinic-voice-agent/internal/calendar"
	"github.com/mlaurent/clinic-voice-agent/internal/calllog"
	"github.com/mlaurent/clinic-voice-agent/internal/conversation"
	"github.com/mlaurent/clinic-voice-agent/internal/events"
	"github.com/mlaurent/clinic-voice-agent/internal/schedule"
	"github.com/mlaurent/clinic-voice-agent/internal/scheduling"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
)

type stubLLM struct {
	reply string
}

func (s *stubLLM) Complete(context.Context, conversation.LLMRequest) (conversation.LLMResponse, error) {
	return conversation.LLMResponse{Text: s.reply}, nil
}

type fakeRecorder struct {
	recorded []*session.CallSession
}

func (f *fakeRecorder) RecordEndedCall(_ context.Context, sess *session.CallSession) (*calllog.CallRecord, error) {
	f.recorded = append(f.recorded, sess)
	return &calllog.CallRecord{CallID: sess.CallID}, nil
}

func newTestHandler(t *testing.T, llmReply, token string) (*VoiceWebhookHandler, *events.MemoryQueue, *fakeRecorder) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	hours, err := schedule.ParseWeeklyHours("Mon-Fri 08:00-18:00")
	if err != nil {
		t.Fatalf("parse hours: %v", err)
	}
	negotiator := scheduling.NewNegotiator(calendar.NewMemoryProvider(), schedule.NewResolver(loc), hours, 30*time.Minute, 16, nil)
	engine := conversation.NewEngine(&stubLLM{reply: llmReply}, session.NewMemoryStore(), negotiator, conversation.EngineConfig{
		PracticeName: "du docteur Laurent",
		HoursSpec:    "Mon-Fri 08:00-18:00",
		ModelID:      "test-model",
		Location:     loc,
	}, nil, nil)

	queue := events.NewMemoryQueue(8)
	recorder := &fakeRecorder{}
	handler := NewVoiceWebhookHandler(VoiceWebhookConfig{
		Engine:    engine,
		Publisher: events.NewPublisher(queue, nil),
		Recorder:  recorder,
		Token:     token,
	})
	return handler, queue, recorder
}

func postVoice(t *testing.T, handler *VoiceWebhookHandler, token string, event VoiceEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	rec := httptest.NewRecorder()
	handler.HandleVoice(rec, req)
	return rec
}

func decodeVoice(t *testing.T, rec *httptest.ResponseRecorder) VoiceResponse {
	t.Helper()
	var resp VoiceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandleVoiceCallStarted(t *testing.T) {
	handler, queue, _ := newTestHandler(t, "Bonjour.", "")

	rec := postVoice(t, handler, "", VoiceEvent{
		EventType: VoiceEventCallStarted,
		CallID:    "call-1",
		From:      "+33612345678",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeVoice(t, rec)
	if !strings.Contains(resp.Speak, "Bonjour") || resp.EndCall {
		t.Fatalf("expected a greeting, got %+v", resp)
	}

	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one call.started event, got %d err %v", len(msgs), err)
	}
}

func TestHandleVoiceCallTurn(t *testing.T) {
	handler, _, _ := newTestHandler(t, "Bien sûr, quel jour vous conviendrait ?", "")

	postVoice(t, handler, "", VoiceEvent{EventType: VoiceEventCallStarted, CallID: "call-1"})
	rec := postVoice(t, handler, "", VoiceEvent{
		EventType:  VoiceEventCallTurn,
		CallID:     "call-1",
		Transcript: "Je voudrais un rendez-vous.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeVoice(t, rec)
	if resp.Speak != "Bien sûr, quel jour vous conviendrait ?" {
		t.Fatalf("unexpected speak: %q", resp.Speak)
	}
}

func TestHandleVoiceCallEnded(t *testing.T) {
	handler, queue, recorder := newTestHandler(t, "Bonjour.", "")
	ctx := context.Background()

	postVoice(t, handler, "", VoiceEvent{EventType: VoiceEventCallStarted, CallID: "call-1", From: "+33612345678"})
	// Drain the started event.
	if _, err := queue.Receive(ctx, 1, 1); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec := postVoice(t, handler, "", VoiceEvent{EventType: VoiceEventCallEnded, CallID: "call-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeVoice(t, rec)
	if !resp.EndCall {
		t.Fatal("expected end_call true")
	}

	msgs, err := queue.Receive(ctx, 1, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one call.ended event, got %d err %v", len(msgs), err)
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0].CallID != "call-1" {
		t.Fatalf("expected one recorded call, got %+v", recorder.recorded)
	}
}

func TestHandleVoiceRejectsBadToken(t *testing.T) {
	handler, _, _ := newTestHandler(t, "Bonjour.", "secret")

	rec := postVoice(t, handler, "wrong", VoiceEvent{EventType: VoiceEventCallStarted, CallID: "call-1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = postVoice(t, handler, "secret", VoiceEvent{EventType: VoiceEventCallStarted, CallID: "call-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with the right token, got %d", rec.Code)
	}
}

func TestHandleVoiceBadRequests(t *testing.T) {
	handler, _, _ := newTestHandler(t, "Bonjour.", "")

	rec := postVoice(t, handler, "", VoiceEvent{EventType: "call.transferred", CallID: "call-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event type, got %d", rec.Code)
	}

	rec = postVoice(t, handler, "", VoiceEvent{EventType: VoiceEventCallStarted})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing call_id, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", strings.NewReader("not json"))
	raw := httptest.NewRecorder()
	handler.HandleVoice(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", raw.Code)
	}
}
