// Package relay holds the HTTP handlers tying the session store, prompt
// assembly, completion client and carrier together.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/storeloop/danbot/internal/carrier"
	"github.com/storeloop/danbot/internal/llm"
	"github.com/storeloop/danbot/internal/logger"
	"github.com/storeloop/danbot/internal/session"
)

// Fixed user-visible replies. Inbound senders always get one of these or a
// generated message inside a 200 TwiML envelope.
const (
	promptForInputText = "Please send a message."
	apologyText        = "Sorry, I encountered an error trying to respond. Please try again."
)

// Completer generates a reply for an assembled message list.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Sender dispatches an outbound message and returns the provider SID.
type Sender interface {
	Send(to, body string) (string, error)
}

// Handler serves the webhook, initiation and liveness endpoints.
type Handler struct {
	store     session.Store
	completer Completer
	sender    Sender
	persona   string
	maxPairs  int
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(store session.Store, completer Completer, sender Sender, persona string, maxPairs int) *Handler {
	return &Handler{
		store:     store,
		completer: completer,
		sender:    sender,
		persona:   persona,
		maxPairs:  maxPairs,
	}
}

// Routes registers all endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sms", h.Inbound)
	mux.HandleFunc("POST /initiate", h.Initiate)
	mux.HandleFunc("GET /healthz", h.Health)
}

// Inbound answers a carrier webhook for an incoming message.
//
// An empty body gets the fixed prompt-for-input reply without touching
// history. A missing sender is the one case that surfaces as an HTTP error,
// there is no address to reply to. A failed completion is recovered locally:
// the dangling user entry is rolled back and the fixed apology goes out in a
// normal 200 envelope.
func (h *Handler) Inbound(w http.ResponseWriter, r *http.Request) {
	log := logger.L.With("request_id", uuid.NewString())

	body := strings.TrimSpace(r.FormValue("Body"))
	sender := r.FormValue("From")
	log.Info("inbound message", "from", sender, "body", body)

	if body == "" {
		h.writeTwiML(w, log, promptForInputText)
		return
	}
	if sender == "" {
		log.Error("inbound request without sender")
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	reply, err := h.generate(r.Context(), log, sender, body)
	if err != nil {
		// A failed generation never surfaces as an HTTP error here; the
		// carrier expects a success-shaped envelope either way.
		var completionErr *llm.CompletionError
		if !errors.As(err, &completionErr) {
			log.Error("unexpected generation failure", "error", err)
		}
		reply = apologyText
	}

	h.writeTwiML(w, log, reply)
}

// initiateRequest is the JSON body of POST /initiate.
type initiateRequest struct {
	PhoneNumber  string `json:"phone_number"`
	Description  string `json:"description"`
	CustomerName string `json:"customer_name"`
}

// Initiate opens a conversation with a customer who has not messaged us yet.
// A seed context line runs through the same generation path as the webhook,
// and the opening line is dispatched through the carrier. The seed and the
// opening line are persisted, so the customer's first reply arrives with
// context.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	log := logger.L.With("request_id", uuid.NewString())

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	if req.PhoneNumber == "" || req.Description == "" || req.CustomerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Missing required fields (phone_number, description, or customer_name) in request",
		})
		return
	}

	seed := "Initial conversation with " + req.CustomerName + ". Context: " + req.Description
	opening, err := h.generate(r.Context(), log, req.PhoneNumber, seed)
	if err != nil {
		// Same recovery as the webhook path: the fixed apology still goes
		// out so the customer hears something.
		opening = apologyText
	}

	sid, err := h.sender.Send(req.PhoneNumber, opening)
	if err != nil {
		log.Error("initial message dispatch failed", "to", req.PhoneNumber, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to send initial message"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Initial message sent successfully",
		"message_sid":   sid,
		"customer_name": req.CustomerName,
	})
}

// Health is a trivial liveness check.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<h1>ok</h1>"))
}

func (h *Handler) writeTwiML(w http.ResponseWriter, log *slog.Logger, text string) {
	envelope, err := carrier.ReplyEnvelope(text)
	if err != nil {
		log.Error("twiml envelope build failed", "error", err)
		http.Error(w, "failed to build reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", carrier.ReplyContentType)
	w.Write([]byte(envelope))
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("json encode failed", "error", err)
	}
}
