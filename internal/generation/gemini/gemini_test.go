package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ragqa/internal/answer"
	"ragqa/internal/domain"
)

func newTestGenerator(t *testing.T, h http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_GEMINI_KEY", "k")
	g, err := New(context.Background(), Config{BaseURL: srv.URL + "/", APIKeyEnv: "TEST_GEMINI_KEY"})
	require.NoError(t, err)
	return g
}

func TestSchema(t *testing.T) {
	s := Schema(answer.Tool().Schema)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"answer", "links"}, s.Required)
	links := s.Properties["links"]
	require.NotNil(t, links)
	assert.Equal(t, genai.TypeArray, links.Type)
	assert.Equal(t, genai.TypeString, links.Items.Properties["url"].Type)
	assert.Equal(t, []string{"url", "text"}, links.Items.Required)
}

func TestGenerate_ForcedFunctionCall(t *testing.T) {
	var body map[string]any
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"generate_answer_with_links","args":{"answer":"Friday","links":[{"url":"u","text":"t"}]}}}]}}]}`))
	})

	raw, err := g.Generate(context.Background(), answer.BuildRequest(domain.AugmentedQuery{Text: "When?"}, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"Friday","links":[{"url":"u","text":"t"}]}`, string(raw))

	cfg := body["toolConfig"].(map[string]any)["functionCallingConfig"].(map[string]any)
	assert.Equal(t, "ANY", cfg["mode"])
	assert.Equal(t, []any{"generate_answer_with_links"}, cfg["allowedFunctionNames"])
}

func TestGenerate_NoFunctionCall(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"plain"}]}}]}`))
	})

	_, err := g.Generate(context.Background(), answer.BuildRequest(domain.AugmentedQuery{Text: "q"}, nil))
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.StageGeneration, ue.Stage)
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	})

	_, err := g.Generate(context.Background(), answer.BuildRequest(domain.AugmentedQuery{Text: "q"}, nil))
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.Status)
}
