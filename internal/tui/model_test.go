package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type stubPort struct {
	answer domain.Answer
	err    error
	got    domain.Query
}

func (s *stubPort) Answer(_ context.Context, q domain.Query) (domain.Answer, error) {
	s.got = q
	return s.answer, s.err
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_AskFlow(t *testing.T) {
	port := &stubPort{answer: domain.Answer{
		Answer: "The deadline is Friday. Late work loses marks.",
		Links:  []domain.Link{{URL: "https://x/1", Text: "deadline post"}, {URL: "https://x/2", Text: "policy"}},
	}}
	m := New(port, "10 records", 0)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	m = typeText(m, "When is the deadline?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.pending)

	msg := cmd()
	assert.Equal(t, "When is the deadline?", port.got.Question)

	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.pending)
	require.NotNil(t, m.answer)
	assert.Contains(t, m.status, "2 sources")
	assert.Contains(t, m.renderAnswer(), "https://x/2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "RAG Q&A")
}

func TestModel_ErrorShownInStatus(t *testing.T) {
	m := New(&stubPort{}, "", 0)
	next, _ := m.Update(answerMsg{question: "q", err: errors.New("generation upstream error 500: internal")})
	m = next.(Model)
	assert.Nil(t, m.answer)
	assert.Contains(t, m.status, "500")
	assert.Equal(t, "No answer yet.", m.renderAnswer())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Docker runs containers. Pandas loads data.", "what does pandas load")
	assert.Contains(t, out, "Docker runs containers.")
	assert.Contains(t, out, "Pandas loads data.")
	assert.Equal(t, "", highlightBestSentence("", "q"))
}
