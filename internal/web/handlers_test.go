package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avogel/teamap/internal/domain"
	"github.com/avogel/teamap/internal/remote"
	appsync "github.com/avogel/teamap/internal/sync"
)

type stubSession struct {
	loadAll   func(ctx context.Context) (*appsync.Snapshot, error)
	saveTea   func(ctx context.Context, tea domain.Tea) (*domain.Tea, error)
	deleteTea func(ctx context.Context, id string) error
	hide      func(ctx context.Context, id string) error
	unhide    func(ctx context.Context, id string) error
	degraded  bool
}

func (s *stubSession) LoadAll(ctx context.Context) (*appsync.Snapshot, error) {
	return s.loadAll(ctx)
}

func (s *stubSession) SaveTea(ctx context.Context, tea domain.Tea) (*domain.Tea, error) {
	return s.saveTea(ctx, tea)
}

func (s *stubSession) DeleteTea(ctx context.Context, id string) error { return s.deleteTea(ctx, id) }
func (s *stubSession) HideStarter(ctx context.Context, id string) error { return s.hide(ctx, id) }
func (s *stubSession) UnhideStarter(ctx context.Context, id string) error { return s.unhide(ctx, id) }
func (s *stubSession) Degraded() bool { return s.degraded }

type stubSuggester struct {
	notes string
	err   error
}

func (s *stubSuggester) TastingNotes(_ context.Context, _ domain.Tea) (string, error) {
	return s.notes, s.err
}

func newTestServer(session *stubSession) *Server {
	return NewServer(session, nil, []string{"http://localhost:5173"}, slog.Default())
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&stubSession{degraded: true})
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["degraded"])
}

func TestHandleListTeas(t *testing.T) {
	session := &stubSession{
		loadAll: func(context.Context) (*appsync.Snapshot, error) {
			return &appsync.Snapshot{
				Teas:     []domain.Tea{{ID: "longjing", Name: "Longjing", Starter: true}},
				Degraded: true,
			}, nil
		},
	}
	rec := doRequest(t, newTestServer(session), http.MethodGet, "/api/teas", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var snap appsync.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Teas, 1)
	assert.Equal(t, "longjing", snap.Teas[0].ID)
	assert.True(t, snap.Degraded)
}

func TestHandleCreateTea(t *testing.T) {
	var got domain.Tea
	session := &stubSession{
		saveTea: func(_ context.Context, tea domain.Tea) (*domain.Tea, error) {
			got = tea
			tea.ID = "generated-id"
			return &tea, nil
		},
	}
	rec := doRequest(t, newTestServer(session), http.MethodPost, "/api/teas",
		`{"name":"Shui Xian","type":"oolong","lat":27.7,"lng":118.0}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Shui Xian", got.Name)
	assert.Empty(t, got.ID)

	var saved domain.Tea
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "generated-id", saved.ID)
}

func TestHandleCreateTeaBadBody(t *testing.T) {
	srv := newTestServer(&stubSession{})
	rec := doRequest(t, srv, http.MethodPost, "/api/teas", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateTeaPathWins(t *testing.T) {
	var got domain.Tea
	session := &stubSession{
		saveTea: func(_ context.Context, tea domain.Tea) (*domain.Tea, error) {
			got = tea
			return &tea, nil
		},
	}
	rec := doRequest(t, newTestServer(session), http.MethodPut, "/api/teas/longjing",
		`{"id":"spoofed","name":"Longjing","type":"green","lat":30.2,"lng":120.1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "longjing", got.ID)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ErrValidation, http.StatusUnprocessableEntity},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not loaded", appsync.ErrNotLoaded, http.StatusServiceUnavailable},
		{"rejected", &remote.Error{Kind: remote.Rejected, Status: 403}, http.StatusBadGateway},
		{"other", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := &stubSession{
				saveTea: func(context.Context, domain.Tea) (*domain.Tea, error) {
					return nil, tc.err
				},
			}
			rec := doRequest(t, newTestServer(session), http.MethodPost, "/api/teas",
				`{"name":"X","type":"green","lat":0,"lng":0}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandleDeleteTea(t *testing.T) {
	var gotID string
	session := &stubSession{
		deleteTea: func(_ context.Context, id string) error {
			gotID = id
			return nil
		},
	}
	rec := doRequest(t, newTestServer(session), http.MethodDelete, "/api/teas/user-1", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-1", gotID)
}

func TestHandleHideAndUnhideStarter(t *testing.T) {
	var hidden, unhidden string
	session := &stubSession{
		hide: func(_ context.Context, id string) error {
			hidden = id
			return nil
		},
		unhide: func(_ context.Context, id string) error {
			unhidden = id
			return nil
		},
	}
	srv := newTestServer(session)

	rec := doRequest(t, srv, http.MethodPost, "/api/starters/qimen/hide", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "qimen", hidden)

	rec = doRequest(t, srv, http.MethodDelete, "/api/starters/qimen/hide", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "qimen", unhidden)
}

func TestHandleSuggestDisabled(t *testing.T) {
	srv := newTestServer(&stubSession{})
	rec := doRequest(t, srv, http.MethodPost, "/api/suggest",
		`{"name":"Longjing","type":"green"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSuggest(t *testing.T) {
	srv := NewServer(&stubSession{}, &stubSuggester{notes: "grassy, chestnut sweetness"},
		[]string{"http://localhost:5173"}, slog.Default())
	rec := doRequest(t, srv, http.MethodPost, "/api/suggest",
		`{"name":"Longjing","type":"green"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "grassy, chestnut sweetness", body["notes"])
}
