package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/llm"
)

func TestClient_ExtractOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"gpt-4o-2024","choices":[{"message":{"content":"{\"items\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, nil)
	out, err := c.ExtractOrder(context.Background(), llm.ExtractRequest{
		Channel:  constants.ChannelChatImage,
		Sender:   "田中",
		Text:     "いつもの",
		Images:   []llm.Attachment{{Data: []byte{0xFF, 0xD8}, MIMEType: "image/jpeg"}},
		Filename: "chat.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, out.Content)
	assert.Equal(t, "gpt-4o-2024", out.Model)
	assert.Equal(t, "openai", out.Provider)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 3)
	user := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, user, 2)
	img := user[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", img["url"])
}

func TestClient_ExtractOrder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status/chat/completions":
			w.WriteHeader(http.StatusInternalServerError)
		case "/nochoices/chat/completions":
			_, _ = w.Write([]byte(`{"choices":[]}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	for _, tc := range []string{"status", "nochoices", "garbage"} {
		c := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/" + tc}, nil)
		_, err := c.ExtractOrder(context.Background(), llm.ExtractRequest{Channel: constants.ChannelFreeText, Text: "x"})
		assert.Error(t, err, tc)
	}
}
