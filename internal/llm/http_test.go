package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["fail"] == true {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	headers := map[string]string{"Authorization": "Bearer k"}
	raw, err := SendJSON(context.Background(), srv.Client(), NewLimiter(0), srv.URL, map[string]any{}, headers, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	_, err = SendJSON(context.Background(), srv.Client(), nil, srv.URL, map[string]any{"fail": true}, headers, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
}

func TestSendJSON_CancelledWhileThrottled(t *testing.T) {
	lim := NewLimiter(0.001)
	require.True(t, lim.Allow()) // drain the single token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SendJSON(ctx, nil, lim, "http://127.0.0.1:0", map[string]any{}, nil, nil)
	assert.Error(t, err)
}
