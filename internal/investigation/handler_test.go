package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	reply Reply
	state *State
	err   error
}

func (s stubService) HandleMessage(context.Context, string, string) (Reply, error) {
	return s.reply, s.err
}

func (s stubService) GetSession(context.Context, uuid.UUID) (*State, error) {
	return s.state, s.err
}

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(svc))
	})
	return r
}

func postMessage(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/investigations/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HandleMessage(t *testing.T) {
	id := uuid.New()
	ok := Reply{Kind: KindAskQuestion, Text: "Where?", SessionID: id, TopicKey: "shoulder"}

	tests := []struct {
		name   string
		svc    stubService
		body   string
		status int
		check  func(t *testing.T, body string)
	}{
		{
			name:   "reply",
			svc:    stubService{reply: ok},
			body:   `{"user_id":"u1","text":"dor no ombro"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body string) {
				var got Reply
				require.NoError(t, json.Unmarshal([]byte(body), &got))
				assert.Equal(t, ok, got)
			},
		},
		{
			name:   "not investigable",
			svc:    stubService{err: ErrNotInvestigable},
			body:   `{"user_id":"u1","text":"bom dia"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.JSONEq(t, `{"kind":"none"}`, body)
			},
		},
		{
			name:   "malformed body",
			svc:    stubService{reply: ok},
			body:   `{`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing user",
			svc:    stubService{err: ErrInvalidInput},
			body:   `{"text":"dor"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "store failure",
			svc:    stubService{err: &StoreError{Op: "save", Err: ErrVersionConflict}},
			body:   `{"user_id":"u1","text":"dor no ombro"}`,
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "try again")
				assert.NotContains(t, body, "version")
			},
		},
		{
			name:   "lock timeout",
			svc:    stubService{err: context.DeadlineExceeded},
			body:   `{"user_id":"u1","text":"dor no ombro"}`,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "unexpected error",
			svc:    stubService{err: errors.New("boom")},
			body:   `{"user_id":"u1","text":"dor no ombro"}`,
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body string) {
				assert.NotContains(t, body, "boom")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMessage(t, newTestRouter(tt.svc), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.check != nil {
				tt.check(t, rec.Body.String())
			}
		})
	}
}

func TestHandler_GetSession(t *testing.T) {
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		h := newTestRouter(stubService{state: &State{ID: id, TopicKey: "knee", Status: StatusInProgress}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/investigations/"+id.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got State
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, id, got.ID)
		assert.Equal(t, StatusInProgress, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		h := newTestRouter(stubService{err: ErrNotFound})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/investigations/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		h := newTestRouter(stubService{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/investigations/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
