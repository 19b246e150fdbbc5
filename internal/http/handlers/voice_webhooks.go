// Package handlers exposes the HTTP surface: the telephony webhook that
// drives calls and the admin read endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/mlaurent/clinic-voice-agent/internal/calllog"
	"github.com/mlaurent/clinic-voice-agent/internal/conversation"
	"github.com/mlaurent/clinic-voice-agent/internal/events"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

// Voice webhook event types sent by the telephony bridge.
const (
	VoiceEventCallStarted = "call.started"
	VoiceEventCallTurn    = "call.turn"
	VoiceEventCallEnded   = "call.ended"
)

// VoiceEvent is the webhook payload from the telephony bridge. The
// bridge owns speech-to-text and text-to-speech; we receive transcribed
// utterances and answer with text to speak.
type VoiceEvent struct {
	EventType string `json:"event_type"`
	// CallID identifies the call across all its events.
	CallID string `json:"call_id"`
	// From is the caller's number in E.164, sent on call.started.
	From string `json:"from,omitempty"`
	// Transcript is the caller's utterance, sent on call.turn. Empty
	// when the caller said nothing intelligible.
	Transcript string `json:"transcript,omitempty"`
}

// VoiceResponse tells the bridge what to speak and whether to hang up.
type VoiceResponse struct {
	CallID  string `json:"call_id"`
	Speak   string `json:"speak,omitempty"`
	EndCall bool   `json:"end_call,omitempty"`
}

type callRecorder interface {
	RecordEndedCall(ctx context.Context, sess *session.CallSession) (*calllog.CallRecord, error)
}

// VoiceWebhookHandler adapts telephony webhook events onto the
// conversation engine.
type VoiceWebhookHandler struct {
	engine    *conversation.Engine
	publisher *events.Publisher
	recorder  callRecorder
	token     string
	logger    *logging.Logger
}

// VoiceWebhookConfig configures the VoiceWebhookHandler. Publisher and
// Recorder may be nil; lifecycle events and durable records are then
// skipped.
type VoiceWebhookConfig struct {
	Engine    *conversation.Engine
	Publisher *events.Publisher
	Recorder  callRecorder
	// Token, when set, must match the X-Webhook-Token header.
	Token  string
	Logger *logging.Logger
}

// NewVoiceWebhookHandler creates the webhook handler.
func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.Engine == nil {
		panic("handlers: conversation engine required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		engine:    cfg.Engine,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		token:     cfg.Token,
		logger:    cfg.Logger,
	}
}

// HandleVoice is the HTTP handler for POST /webhooks/voice.
func (h *VoiceWebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.token != "" && r.Header.Get("X-Webhook-Token") != h.token {
		h.logger.Warn("voice webhook rejected", "reason", "bad token", "remote_ip", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("voice webhook body read failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var event VoiceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("voice webhook parse failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event.CallID == "" {
		http.Error(w, "call_id required", http.StatusBadRequest)
		return
	}

	switch event.EventType {
	case VoiceEventCallStarted:
		h.handleCallStarted(ctx, w, event)
	case VoiceEventCallTurn:
		h.handleCallTurn(ctx, w, event)
	case VoiceEventCallEnded:
		h.handleCallEnded(ctx, w, event)
	default:
		h.logger.Warn("voice webhook unknown event", "event_type", event.EventType)
		http.Error(w, "unknown event type", http.StatusBadRequest)
	}
}

func (h *VoiceWebhookHandler) handleCallStarted(ctx context.Context, w http.ResponseWriter, event VoiceEvent) {
	greeting, err := h.engine.StartCall(ctx, event.CallID, event.From)
	if err != nil {
		h.logger.Error("call start failed", "call_id", event.CallID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.publisher.CallStarted(ctx, &session.CallSession{
		CallID:      event.CallID,
		CallerPhone: event.From,
		StartedAt:   time.Now().UTC(),
	}); err != nil {
		h.logger.Error("call.started publish failed", "call_id", event.CallID, "error", err)
	}
	writeJSON(w, http.StatusOK, VoiceResponse{CallID: event.CallID, Speak: greeting})
}

func (h *VoiceWebhookHandler) handleCallTurn(ctx context.Context, w http.ResponseWriter, event VoiceEvent) {
	reply, end := h.engine.ProcessTurn(ctx, event.CallID, event.Transcript)
	writeJSON(w, http.StatusOK, VoiceResponse{CallID: event.CallID, Speak: reply, EndCall: end})
}

func (h *VoiceWebhookHandler) handleCallEnded(ctx context.Context, w http.ResponseWriter, event VoiceEvent) {
	sess, err := h.engine.EndCall(ctx, event.CallID)
	if err != nil {
		h.logger.Error("call end failed", "call_id", event.CallID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sess != nil {
		if err := h.publisher.CallEnded(ctx, sess); err != nil {
			h.logger.Error("call.ended publish failed", "call_id", event.CallID, "error", err)
		}
		if h.recorder != nil {
			if _, err := h.recorder.RecordEndedCall(ctx, sess); err != nil {
				h.logger.Error("call record failed", "call_id", event.CallID, "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, VoiceResponse{CallID: event.CallID, EndCall: true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
