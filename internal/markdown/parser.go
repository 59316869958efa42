// Package markdown turns replies from the generation service into HTML
// fragments for the editor. Replies that already are HTML pass through with
// their code fences stripped; Markdown replies are rendered with goldmark, GFM
// extensions and chroma syntax highlighting.
package markdown

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Document is a rendered reply.
type Document struct {
	HTML  string `json:"html"`
	Title string `json:"title,omitempty"`
	// FromMarkdown is set when the reply had to be converted.
	FromMarkdown bool `json:"fromMarkdown"`
}

// Parser renders replies.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a new parser with extensions
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
			gmhtml.WithUnsafe(),
		),
	)

	return &Parser{md: md}
}

var (
	fenceHTML   = regexp.MustCompile("(?i)```html")
	leadingTag  = regexp.MustCompile(`^\s*<[a-zA-Z][a-zA-Z0-9]*[\s/>]`)
	htmlHeading = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
)

// StripFences removes the ```html and ``` markers models like to wrap
// HTML answers in.
func StripFences(reply string) string {
	reply = fenceHTML.ReplaceAllString(reply, "")
	reply = strings.ReplaceAll(reply, "```", "")
	return strings.TrimSpace(reply)
}

// Render converts a reply to an HTML fragment.
func (p *Parser) Render(reply string) (*Document, error) {
	trimmed := strings.TrimSpace(reply)
	if fenceHTML.MatchString(trimmed) || leadingTag.MatchString(trimmed) {
		out := StripFences(trimmed)
		return &Document{HTML: out, Title: htmlTitle(out)}, nil
	}

	source := []byte(trimmed)
	var buf bytes.Buffer
	if err := p.md.Convert(source, &buf); err != nil {
		return nil, err
	}
	return &Document{
		HTML:         buf.String(),
		Title:        p.markdownTitle(source),
		FromMarkdown: true,
	}, nil
}

// markdownTitle returns the text of the first heading.
func (p *Parser) markdownTitle(source []byte) string {
	doc := p.md.Parser().Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			title = extractText(heading, source)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func htmlTitle(fragment string) string {
	m := htmlHeading.FindStringSubmatch(fragment)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(m[1], "")))
}

// extractText extracts text content from a node
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(extractText(child, source))
	}
	return buf.String()
}
