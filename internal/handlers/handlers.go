// Package handlers implements the HTTP endpoints of the relay.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/castellan/gembridge/internal/errors"
	"github.com/castellan/gembridge/internal/gemini"
	"github.com/castellan/gembridge/internal/middleware"
)

// Fixed echo handler strings. The echo endpoint exists so mobile clients
// can verify connectivity before spending AI quota.
const (
	greeting      = "Gemini relay server is running"
	echoTrigger   = "Marco"
	echoReply     = "Polo"
	echoGuidance  = "Send a message saying 'Marco' to get a response!"
	promptMissing = "Prompt is required"
	relayFailed   = "Failed to generate AI response"
)

// Generator produces text for a prompt. Satisfied by *gemini.Client;
// tests substitute a stub.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (*gemini.Result, error)
}

// Handler holds the dependencies of all route handlers.
type Handler struct {
	generator Generator
	logger    *slog.Logger
}

// New creates a Handler backed by the given generator.
func New(generator Generator, logger *slog.Logger) *Handler {
	return &Handler{
		generator: generator,
		logger:    logger,
	}
}

// Routes returns the route table as an http.Handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /test", h.handleEcho)
	mux.HandleFunc("POST /gemini-test", h.handleRelay)
	return mux
}

// handleRoot answers the plain-text greeting.
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(greeting))
}

// handleHealth reports liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// echoRequest is the body of the connectivity test endpoint.
type echoRequest struct {
	Message string `json:"message"`
}

// handleEcho answers Marco with Polo and anything else with guidance.
// It never fails: a broken body is treated like a wrong message.
func (h *Handler) handleEcho(w http.ResponseWriter, r *http.Request) {
	var req echoRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	response := echoGuidance
	if req.Message == echoTrigger {
		response = echoReply
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// relayRequest is the body of the AI relay endpoint.
type relayRequest struct {
	Prompt string `json:"prompt"`
}

// relayResponse carries the extracted candidate text and the raw upstream
// payload.
type relayResponse struct {
	Response     string          `json:"response"`
	FullResponse json.RawMessage `json:"fullResponse"`
}

// handleRelay forwards the prompt to the AI service. A missing prompt is
// rejected before any outbound call is made; any upstream failure maps to a
// 500 with the underlying description in the details field.
func (h *Handler) handleRelay(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": promptMissing})
		return
	}

	result, err := h.generator.GenerateContent(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("relay request failed",
			"error", err,
			"error_type", string(errors.GetType(err)),
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeJSON(w, errors.HTTPStatus(err), map[string]string{
			"error":   relayFailed,
			"details": errors.Details(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, relayResponse{
		Response:     result.Text,
		FullResponse: result.Raw,
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
