package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "auditflow/pkg/domain-errors"
)

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeBadRequest, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeForbidden, http.StatusForbidden},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeConflict, http.StatusConflict},
		{dErrors.CodeInvariantViolation, http.StatusConflict},
		{dErrors.CodeRateLimited, http.StatusTooManyRequests},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		{dErrors.CodeInternal, http.StatusInternalServerError},
		{dErrors.Code("made_up"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, ToHTTPStatus(tc.code), string(tc.code))
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteErrorKeepsDomainMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.New(dErrors.CodeConflict, "leader already assigned"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "leader already assigned", body["error_description"])
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.Wrap(errors.New("pq: relation missing"), dErrors.CodeInternal, "storage failure"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, rec.Body.String(), "relation missing")
}

func TestWriteErrorPassesDetailsThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.NewWithDetails(dErrors.CodeRateLimited, "already sent recently",
		map[string]any{"last_sent_at": "2026-05-01T10:00:00Z"}))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-05-01T10:00:00Z", details["last_sent_at"])
}

func TestWriteErrorUncodedError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("something odd"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeBody(t, rec)["error"])
}

func TestDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"venue":"Room 4"}`))
	var dst struct {
		Venue string `json:"venue"`
	}
	require.NoError(t, Decode(req, &dst))
	assert.Equal(t, "Room 4", dst.Venue)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"venue":`))
	err := Decode(req, &dst)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
