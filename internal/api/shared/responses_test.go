package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/platform/logger"
	"github.com/orderflow/orderflow/internal/testutils"
)

func requestWithLogger(t *testing.T) (*http.Request, *testutils.TestSlogHandler) {
	t.Helper()
	log, h := testutils.NewTestLogger()
	ctx := logger.WithLogger(SetTraceID(context.Background()), log)
	return httptest.NewRequest(http.MethodGet, "/api/orders/1", nil).WithContext(ctx), h
}

func TestRespondWithErrorAndLog(t *testing.T) {
	r, h := requestWithLogger(t)
	rec := httptest.NewRecorder()

	RespondWithErrorAndLog(rec, r, http.StatusInternalServerError, "Failed to read order status",
		errors.New("dial redis://:hunter2@10.0.0.5:6379 failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to read order status", resp.Error)
	assert.Equal(t, GetTraceID(r.Context()), resp.TraceID)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	entries := h.Find("API error response")
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.NotContains(t, entries[0]["error"], "hunter2")
	assert.Equal(t, int64(http.StatusInternalServerError), entries[0]["status_code"])
}

func TestRespondWithError_ClientErrorsLogAtDebug(t *testing.T) {
	r, h := requestWithLogger(t)
	rec := httptest.NewRecorder()

	RespondWithError(rec, r, http.StatusNotFound, "Order not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	entries := h.Find("API error response")
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.NotContains(t, entries[0], "error")
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"name":"widget"}`, false},
		{"unknown field", `{"name":"widget","extra":1}`, true},
		{"trailing object", `{"name":"a"}{"name":"b"}`, true},
		{"empty", ``, true},
		{"too large", `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var v body
			err := DecodeJSON(httptest.NewRecorder(), r, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "widget", v.Name)
		})
	}
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, GetTraceID(SetTraceID(context.Background())))
}
