package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facerec/internal/api/handlers"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/storage"
)

func ok(context.Context) error { return nil }

func do(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	r := NewRouter(RouterConfig{})
	rec := do(t, r, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	r := NewRouter(RouterConfig{Checks: []handlers.Check{
		{Name: "store", Ping: ok},
		{Name: "queue", Ping: ok},
	}})
	rec := do(t, r, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"store":"ok","queue":"ok"}}`, rec.Body.String())

	r = NewRouter(RouterConfig{Checks: []handlers.Check{
		{Name: "store", Ping: ok},
		{Name: "queue", Ping: func(context.Context) error { return errors.New("redis: connection refused") }},
	}})
	rec = do(t, r, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","checks":{"store":"ok","queue":"redis: connection refused"}}`, rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	r := NewRouter(RouterConfig{})
	_ = do(t, r, "/healthz", nil)

	rec := do(t, r, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "facerec_http_request_duration_seconds")
}

func TestPeopleAndStats(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	name := "alice"
	alice, err := store.AddPerson(ctx, &name)
	require.NoError(t, err)
	_, err = store.AddEmbedding(ctx, alice, models.Vector{}, "image:a.jpg")
	require.NoError(t, err)
	_, err = store.AddPerson(ctx, nil)
	require.NoError(t, err)

	r := NewRouter(RouterConfig{Store: store, APIKey: "k"})

	assert.Equal(t, http.StatusUnauthorized, do(t, r, "/v1/people", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, r, "/v1/people", map[string]string{"X-API-Key": "wrong"}).Code)

	rec := do(t, r, "/v1/people", map[string]string{"X-API-Key": "k"})
	require.Equal(t, http.StatusOK, rec.Code)
	var people struct {
		People []struct {
			ID        int64   `json:"id"`
			Name      *string `json:"name"`
			FaceCount int     `json:"face_count"`
		} `json:"people"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &people))
	require.Equal(t, 2, people.Total)
	assert.Equal(t, "alice", *people.People[0].Name)
	assert.Equal(t, 1, people.People[0].FaceCount)
	assert.Nil(t, people.People[1].Name)

	rec = do(t, r, "/v1/stats", map[string]string{"Authorization": "Bearer k"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"people":2,"embeddings":1,"video_hits":0}`, rec.Body.String())
}

func TestIntrospectionDisabledWithoutStore(t *testing.T) {
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, do(t, r, "/v1/people", nil).Code)
}
