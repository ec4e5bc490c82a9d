// Package corpus reads markdown dumps from disk and resolves each file's locator URL.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"ragqa/internal/domain"
)

// Source kinds.
const (
	KindDiscourse = "discourse"
	KindSite      = "site"
)

const viewTopicLabel = "View Topic"

// Source is one directory of markdown files.
type Source struct {
	Path    string
	Kind    string
	BaseURL string
}

// Loader turns markdown files into documents.
type Loader struct {
	md     goldmark.Markdown
	logger *log.Logger
}

func NewLoader(logger *log.Logger) *Loader {
	return &Loader{
		md:     goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		logger: logger,
	}
}

// Load reads every source in order. Files within a source are read in lexical order.
func (l *Loader) Load(sources []Source) ([]domain.Document, error) {
	var docs []domain.Document
	for _, src := range sources {
		got, err := l.LoadSource(src)
		if err != nil {
			return nil, err
		}
		docs = append(docs, got...)
	}
	return docs, nil
}

// LoadSource reads the *.md files of a single directory.
func (l *Loader) LoadSource(src Source) ([]domain.Document, error) {
	paths, err := filepath.Glob(filepath.Join(src.Path, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", src.Path, err)
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		doc := l.Parse(filepath.Base(p), string(raw), src)
		if strings.TrimSpace(doc.Content) == "" {
			l.logger.Warn().Str("file", p).Msg("skipping empty document")
			continue
		}
		docs = append(docs, doc)
	}
	l.logger.Info().Str("path", src.Path).Str("kind", src.Kind).Int("documents", len(docs)).Msg("loaded corpus source")
	return docs, nil
}

// Parse builds a document from a file's name and contents.
func (l *Loader) Parse(name, content string, src Source) domain.Document {
	source := []byte(content)
	root := l.md.Parser().Parse(text.NewReader(source))

	title, link := scan(root, source)
	url := link
	if url == "" {
		url = pinnedURL(content)
	}
	if url == "" {
		url = FileURL(name, src)
	}
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return domain.Document{ID: name, URL: url, Title: title, Content: content}
}

// scan returns the first heading text and the destination of the first "View Topic" link.
func scan(root ast.Node, source []byte) (title, topic string) {
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" {
				title = strings.TrimSpace(inlineText(node, source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if topic == "" && strings.EqualFold(strings.TrimSpace(inlineText(node, source)), viewTopicLabel) {
				topic = string(node.Destination)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return title, topic
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(source))
		default:
			b.WriteString(inlineText(c, source))
		}
	}
	return b.String()
}

// pinnedURL reads a leading "🔗 <url>" line.
func pinnedURL(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rest, ok := strings.CutPrefix(line, "🔗")
		if !ok {
			return ""
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	return ""
}

// FileURL derives a locator from the file name.
// Discourse dumps are named "<id>-<slug>.md" and map to <base>/t/<slug>/<id>.
func FileURL(name string, src Source) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	switch src.Kind {
	case KindDiscourse:
		id, slug, ok := strings.Cut(stem, "-")
		if !ok {
			return strings.TrimRight(src.BaseURL, "/") + "/t/" + stem
		}
		parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' })
		return fmt.Sprintf("%s/t/%s/%s", strings.TrimRight(src.BaseURL, "/"), strings.Join(parts, "-"), id)
	default:
		return src.BaseURL + stem
	}
}
