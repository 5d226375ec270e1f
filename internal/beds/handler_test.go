package beds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	svc, _, _ := newTestService()
	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerLifecycle(t *testing.T) {
	h := newTestRouter()

	rec := do(t, h, http.MethodPost, "/beds", `{"id":"B1","room_id":"R1","code":"101-A","isolation_capable":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/beds", `{"id":"B2","room_id":"R1","code":"101-B"}`).Code)

	rec = do(t, h, http.MethodPatch, "/beds/B2/status", `{"status":"cleaning"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/beds?status=available", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Bed
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "B1", list[0].ID)
	assert.True(t, list[0].IsolationCapable)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/beds/B1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/beds/B1", "").Code)
}

func TestHandlerErrors(t *testing.T) {
	h := newTestRouter()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/beds", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/beds", `{"id":"B1","room_id":"R1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/beds/B1/status", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/beds?status=dirty", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/beds/B404/status", `{"status":"cleaning"}`).Code)

	body := `{"id":"B1","room_id":"R1","code":"101-A"}`
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/beds", body).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/beds", body).Code)
}
