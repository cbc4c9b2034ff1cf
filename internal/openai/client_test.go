package openai

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/feedback-insights/internal/models"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newTestServer(t *testing.T, status int, body any, captured *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)

			return
		}

		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testRequest() models.InferenceRequest {
	return models.InferenceRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		SchemaName:   "feedback_analysis",
		Schema:       map[string]any{"type": "object"},
	}
}

func TestClient_Run_ReturnsJSONContent(t *testing.T) {
	var captured map[string]any

	srv := newTestServer(t, http.StatusOK, chatResponse(`{"summary":"ok"}`), &captured)
	client := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))

	raw, err := client.Run(t.Context(), "gpt-4o-mini", testRequest())

	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(raw))

	assert.Equal(t, "gpt-4o-mini", captured["model"])

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])

	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "feedback_analysis", schema["name"])
	assert.Equal(t, true, schema["strict"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestClient_Run_WrapsNonJSONContentAsString(t *testing.T) {
	content := "```json\n{\"summary\":\"ok\"}\n```"
	srv := newTestServer(t, http.StatusOK, chatResponse(content), nil)
	client := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))

	raw, err := client.Run(t.Context(), "gpt-4o-mini", testRequest())
	require.NoError(t, err)

	var got string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, content, got)
}

func TestClient_Run_EmptyContent(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, chatResponse("  "), nil)
	client := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))

	_, err := client.Run(t.Context(), "gpt-4o-mini", testRequest())

	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestClient_Run_NoChoices(t *testing.T) {
	body := chatResponse("")
	body["choices"] = []any{}

	srv := newTestServer(t, http.StatusOK, body, nil)
	client := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))

	_, err := client.Run(t.Context(), "gpt-4o-mini", testRequest())

	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestClient_Run_APIErrorKeepsStatus(t *testing.T) {
	body := map[string]any{"error": map[string]any{"message": "bad key", "type": "invalid_request_error"}}
	srv := newTestServer(t, http.StatusUnauthorized, body, nil)
	client := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))

	_, err := client.Run(t.Context(), "gpt-4o-mini", testRequest())

	var apiErr *openaisdk.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
