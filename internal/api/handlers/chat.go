package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/service"
)

const defaultHistoryLimit = 20

type ChatHandler struct {
	turns     *service.TurnService
	knowledge *service.KnowledgeService
}

func NewChatHandler(turns *service.TurnService, knowledge *service.KnowledgeService) *ChatHandler {
	return &ChatHandler{turns: turns, knowledge: knowledge}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Chat runs one full decision-pipeline turn for the agent and session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	result, err := h.turns.ProcessTurn(r.Context(), agentID, sessionID, req.Message)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		switch {
		case errors.Is(err, service.ErrMessageEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to process message")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// History returns the session's recent decision traces in chronological
// order.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	traces, err := h.turns.History(r.Context(), agentID, sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"traces": traces, "count": len(traces)})
}

type teachRequest struct {
	TraceID          string `json:"trace_id"`
	ApprovedResponse string `json:"approved_response"`
}

// Teach promotes a reviewed response into the agent's knowledge base as a
// question-answer chunk.
func (h *ChatHandler) Teach(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req teachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	traceID, err := uuid.Parse(req.TraceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trace_id")
		return
	}

	chunk, err := h.knowledge.Teach(r.Context(), agentID, traceID, req.ApprovedResponse)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		switch {
		case errors.Is(err, service.ErrResponseEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTraceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrTraceAgentMismatch):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to teach from trace")
		}
		return
	}

	writeJSON(w, http.StatusCreated, chunk)
}
