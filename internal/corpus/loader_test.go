package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/logging"
)

func TestFileURL(t *testing.T) {
	forum := Source{Kind: KindDiscourse, BaseURL: "https://discourse.example.org/"}
	assert.Equal(t, "https://discourse.example.org/t/ga1-clarification/155", FileURL("155-ga1--clarification.md", forum))
	assert.Equal(t, "https://discourse.example.org/t/week-2/42", FileURL("42-week-2-.md", forum))

	site := Source{Kind: KindSite, BaseURL: "https://tds.example.net/#/"}
	assert.Equal(t, "https://tds.example.net/#/docker", FileURL("docker.md", site))
}

func TestParse_ViewTopicLinkWins(t *testing.T) {
	l := NewLoader(logging.Discard())
	content := "# Deadline for GA3\n\nSome discussion.\n\n[View Topic](https://discourse.example.org/t/deadline/99)\n"
	doc := l.Parse("99-deadline.md", content, Source{Kind: KindDiscourse, BaseURL: "https://other"})

	assert.Equal(t, "99-deadline.md", doc.ID)
	assert.Equal(t, "Deadline for GA3", doc.Title)
	assert.Equal(t, "https://discourse.example.org/t/deadline/99", doc.URL)
	assert.Equal(t, content, doc.Content)
}

func TestParse_PinnedURLLine(t *testing.T) {
	l := NewLoader(logging.Discard())
	content := "\n🔗 https://tds.example.net/#/docker\n\n## Docker\n\nContainers.\n"
	doc := l.Parse("docker.md", content, Source{Kind: KindSite, BaseURL: "https://fallback/#/"})
	assert.Equal(t, "https://tds.example.net/#/docker", doc.URL)
	assert.Equal(t, "Docker", doc.Title)
}

func TestParse_FallsBackToFileName(t *testing.T) {
	l := NewLoader(logging.Discard())
	doc := l.Parse("vscode.md", "Plain text without headings.", Source{Kind: KindSite, BaseURL: "https://tds.example.net/#/"})
	assert.Equal(t, "https://tds.example.net/#/vscode", doc.URL)
	assert.Equal(t, "vscode", doc.Title)
}

func TestLoad_ReadsSourcesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# B\nbeta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\nalpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), []byte("  \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	l := NewLoader(logging.Discard())
	docs, err := l.Load([]Source{{Path: dir, Kind: KindSite, BaseURL: "https://x/#/"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].ID)
	assert.Equal(t, "b.md", docs[1].ID)
	assert.Equal(t, "https://x/#/a", docs[0].URL)
}
