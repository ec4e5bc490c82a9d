package chunker

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func reconstruct(chunks []domain.Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		b.WriteString(string([]rune(ch.Text)[overlap:]))
	}
	return b.String()
}

func TestNewWindowChunker_RejectsInvalidWindow(t *testing.T) {
	_, err := NewWindowChunker(10, 10)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = NewWindowChunker(10, -1)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = NewWindowChunker(0, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	c, err := NewWindowChunker(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Empty(t, Split("doc", "", 10, 2))
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	for _, text := range []string{"a", "hello", "exactly10!"} {
		chunks := Split("doc", text, 10, 3)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, "doc", chunks[0].DocumentID)
	}
}

func TestSplit_WindowsAndOverlap(t *testing.T) {
	chunks := Split("doc", "abcdefghijklmnopqrstuvwxyz", 10, 3)
	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "hijklmnopq", chunks[1].Text)
	assert.Equal(t, "opqrstuvwx", chunks[2].Text)
	assert.Equal(t, "vwxyz", chunks[3].Text)
	assert.Equal(t, []int{0, 7, 14, 21}, []int{chunks[0].Start, chunks[1].Start, chunks[2].Start, chunks[3].Start})
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	text := "héllo wörld ünïcode"
	chunks := Split("doc", text, 6, 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 6)
		assert.True(t, strings.Contains(text, ch.Text))
	}
	assert.Equal(t, text, reconstruct(chunks, 2))
}

func TestSplit_CoverageProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghij klmnop\nqrstuvwxyzé")
	for trial := 0; trial < 300; trial++ {
		n := rng.Intn(200)
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)
		size := rng.Intn(30) + 1
		overlap := rng.Intn(size)

		chunks := Split("doc", text, size, overlap)
		if n == 0 {
			assert.Empty(t, chunks)
			continue
		}
		require.NotEmpty(t, chunks)
		assert.Equal(t, text, reconstruct(chunks, overlap), "size=%d overlap=%d", size, overlap)
		for i, ch := range chunks {
			l := len([]rune(ch.Text))
			assert.Greater(t, l, 0)
			assert.LessOrEqual(t, l, size)
			if i < len(chunks)-1 {
				assert.Equal(t, size, l)
			}
			if i > 0 {
				prev := chunks[i-1]
				assert.Greater(t, ch.Start, prev.Start)
				assert.Equal(t, prev.Start+size-overlap, ch.Start)
			}
		}
	}
}

func TestWindowChunker_Chunk(t *testing.T) {
	c, err := NewWindowChunker(4, 1)
	require.NoError(t, err)
	chunks := c.Chunk(domain.Document{ID: "d1", Content: "abcdefg"})
	require.Len(t, chunks, 2)
	assert.Equal(t, "abcd", chunks[0].Text)
	assert.Equal(t, "defg", chunks[1].Text)
	assert.Equal(t, "d1", chunks[1].DocumentID)
}
