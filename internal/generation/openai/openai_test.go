package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/answer"
	"ragqa/internal/domain"
)

func newTestGenerator(t *testing.T, h http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	g, err := New(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Model: "gpt-test"})
	require.NoError(t, err)
	return g
}

func TestGenerate_ForcesToolAndReturnsArguments(t *testing.T) {
	var body map[string]any
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"generate_answer_with_links","arguments":"{\"answer\":\"Friday\",\"links\":[{\"url\":\"u\",\"text\":\"t\"}]}"}}]}}]}`))
	})

	req := answer.BuildRequest(domain.AugmentedQuery{Text: "When?"}, nil)
	raw, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"Friday","links":[{"url":"u","text":"t"}]}`, string(raw))

	assert.Equal(t, "gpt-test", body["model"])
	choice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "function", choice["type"])
	assert.Equal(t, "generate_answer_with_links", choice["function"].(map[string]any)["name"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	calls := 0
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"internal","type":"server_error"}}`))
	})

	_, err := g.Generate(context.Background(), answer.BuildRequest(domain.AugmentedQuery{Text: "q"}, nil))
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.Status)
	assert.Equal(t, domain.StageGeneration, ue.Stage)
	assert.Equal(t, 1, calls)
}

func TestGenerate_MissingToolCall(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"plain text"}}]}`))
	})

	_, err := g.Generate(context.Background(), answer.BuildRequest(domain.AugmentedQuery{Text: "q"}, nil))
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "no generate_answer_with_links tool call")
}
