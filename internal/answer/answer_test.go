package answer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type stubGenerator struct {
	raw     json.RawMessage
	err     error
	got     domain.GenerationRequest
	waitCtx bool
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (json.RawMessage, error) {
	s.got = req
	if s.waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.raw, s.err
}

func TestTool_Schema(t *testing.T) {
	tool := Tool()
	assert.Equal(t, "generate_answer_with_links", tool.Name)
	assert.Equal(t, []string{"answer", "links"}, tool.Schema["required"])

	links := tool.Schema["properties"].(map[string]any)["links"].(map[string]any)
	items := links["items"].(map[string]any)
	assert.Equal(t, []string{"url", "text"}, items["required"])
}

func TestBuildRequest(t *testing.T) {
	window := []domain.ContextBlock{
		{Text: "Deadline is Friday.", URL: "https://x/t/d/1"},
		{Text: "Late penalty is 10%.", URL: "https://x/t/p/2"},
	}
	req := BuildRequest(domain.AugmentedQuery{Text: "When is it due?"}, window)

	dashes := strings.Repeat("-", 50)
	want := "Context:\n" + dashes + "\n" +
		"Deadline is Friday.\n(Source: https://x/t/d/1)\n\nLate penalty is 10%.\n(Source: https://x/t/p/2)" +
		"\n" + dashes + "\nQuestion: When is it due?"
	assert.Equal(t, want, req.User)
	assert.Equal(t, "Answer using ONLY the provided context.", req.System)
	assert.Equal(t, ToolName, req.Tool.Name)
}

func TestNormalize_AliasesAreEquivalent(t *testing.T) {
	shapes := []string{
		`{"answer":"A","links":[{"url":"u","text":"t"}]}`,
		`{"answer":"A","sources":[{"url":"u","text":"t"}]}`,
		`{"answer":"A","links":[{"url":"u","description":"t"}]}`,
		`{"answer":"A","sources":[{"url":"u","description":"t"}]}`,
		`{"answer":"A","links":[],"sources":[{"url":"u","text":"t"}]}`,
	}
	want := domain.Answer{Answer: "A", Links: []domain.Link{{URL: "u", Text: "t"}}}
	for _, s := range shapes {
		got, err := Normalize(json.RawMessage(s))
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}

func TestNormalize_EdgeCases(t *testing.T) {
	got, err := Normalize(json.RawMessage(`{"links":[{"url":"","text":"dropped"},{"url":"u","text":"kept"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "", got.Answer)
	assert.Equal(t, []domain.Link{{URL: "u", Text: "kept"}}, got.Links)

	got, err = Normalize(json.RawMessage(`{"answer":"no citations"}`))
	require.NoError(t, err)
	require.NotNil(t, got.Links)
	assert.Empty(t, got.Links)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"no citations","links":[]}`, string(out))

	got, err = Normalize(json.RawMessage(`{"answer":"A","links":[{"url":"l","text":"x"}],"sources":[{"url":"s","text":"y"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []domain.Link{{URL: "l", Text: "x"}}, got.Links)

	_, err = Normalize(json.RawMessage(`{"answer":`))
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.StageGeneration, ue.Stage)
}

func TestNormalize_FallsBackToSourcesWhenLinksHaveNoURL(t *testing.T) {
	got, err := Normalize(json.RawMessage(`{"answer":"A","links":[{"url":""}],"sources":[{"url":"https://u","description":"d"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []domain.Link{{URL: "https://u", Text: "d"}}, got.Links)
}

func TestExtractor_Extract(t *testing.T) {
	g := &stubGenerator{raw: json.RawMessage(`{"answer":"Friday","sources":[{"url":"u","description":"d"}]}`)}
	got, err := NewExtractor(g, 0).Extract(context.Background(), domain.AugmentedQuery{Text: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Answer{Answer: "Friday", Links: []domain.Link{{URL: "u", Text: "d"}}}, got)
	assert.Contains(t, g.got.User, "Question: q")
}

func TestExtractor_WrapsFailures(t *testing.T) {
	upstream := &domain.UpstreamError{Stage: domain.StageGeneration, Status: 500, Message: "internal"}
	_, err := NewExtractor(&stubGenerator{err: upstream}, 0).Extract(context.Background(), domain.AugmentedQuery{}, nil)
	assert.Same(t, upstream, err)

	_, err = NewExtractor(&stubGenerator{err: errors.New("dial tcp: refused")}, 0).Extract(context.Background(), domain.AugmentedQuery{}, nil)
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "refused")

	_, err = NewExtractor(&stubGenerator{waitCtx: true}, 10*time.Millisecond).Extract(context.Background(), domain.AugmentedQuery{}, nil)
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 500, domain.HTTPStatus(err))
}
