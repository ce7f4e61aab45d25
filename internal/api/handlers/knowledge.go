package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

type KnowledgeHandler struct {
	svc *service.KnowledgeService
}

func NewKnowledgeHandler(svc *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type ingestRequest struct {
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Ingest chunks the content, embeds every chunk, and stores the batch. The
// response reports how many chunks the content produced.
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunks, err := h.svc.Ingest(r.Context(), agentID, domain.ChunkType(req.Type), req.Content, req.Metadata)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		switch {
		case errors.Is(err, service.ErrContentEmpty),
			errors.Is(err, service.ErrInvalidChunkType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to ingest knowledge")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"chunks": chunks, "count": len(chunks)})
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var chunkType *domain.ChunkType
	if t := r.URL.Query().Get("type"); t != "" {
		ct := domain.ChunkType(t)
		if !domain.ValidChunkType(t) {
			writeError(w, http.StatusBadRequest, "invalid chunk type")
			return
		}
		chunkType = &ct
	}

	chunks, err := h.svc.ListByAgent(r.Context(), agentID, chunkType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list knowledge")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks, "count": len(chunks)})
}

type updateChunkRequest struct {
	Content string `json:"content"`
}

func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	var req updateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunk, err := h.svc.UpdateChunk(r.Context(), id, req.Content)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		switch {
		case errors.Is(err, service.ErrContentEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrChunkNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update chunk")
		}
		return
	}

	writeJSON(w, http.StatusOK, chunk)
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chunk id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrChunkNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete chunk")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
