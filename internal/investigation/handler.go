package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type MessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

const retryMessage = "Something went wrong on our side. Please try again in a moment."

func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), req.UserID, req.Text)
	if err != nil {
		var storeErr *StoreError
		switch {
		case errors.Is(err, ErrNotInvestigable):
			writeJSON(w, http.StatusOK, map[string]string{"kind": "none"})
		case errors.Is(err, ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &storeErr), errors.Is(err, context.DeadlineExceeded):
			http.Error(w, retryMessage, http.StatusServiceUnavailable)
		default:
			http.Error(w, retryMessage, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	st, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, retryMessage, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/investigations/messages", h.HandleMessage)
	r.Get("/investigations/{id}", h.GetSession)
}
