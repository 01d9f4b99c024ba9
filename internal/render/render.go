// ABOUTME: Markdown to terminal text rendering for assistant replies
// ABOUTME: Walks the goldmark AST and emits plain or ANSI-styled text

package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer turns markdown into text for a terminal. The zero value is not
// usable; call New.
type Renderer struct {
	md     goldmark.Markdown
	styled bool

	bold   *color.Color
	italic *color.Color
	code   *color.Color
	strike *color.Color
	link   *color.Color
}

// New creates a renderer. With styled set, emphasis, code and links are
// wrapped in ANSI escapes; otherwise only the markup is removed.
func New(styled bool) *Renderer {
	r := &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify)),
		styled: styled,
		bold:   color.New(color.Bold),
		italic: color.New(color.Italic),
		code:   color.New(color.FgCyan),
		strike: color.New(color.CrossedOut),
		link:   color.New(color.FgBlue, color.Underline),
	}
	if styled {
		for _, c := range []*color.Color{r.bold, r.italic, r.code, r.strike, r.link} {
			c.EnableColor()
		}
	}
	return r
}

// Render converts a markdown document.
func (r *Renderer) Render(markdown string) string {
	src := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(src))
	return strings.TrimRight(r.blocks(doc, src, "\n\n"), "\n")
}

func (r *Renderer) style(c *color.Color, s string) string {
	if !r.styled || s == "" {
		return s
	}
	return c.Sprint(s)
}

// blocks renders the block children of parent joined by sep.
func (r *Renderer) blocks(parent ast.Node, src []byte, sep string) string {
	var parts []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := r.block(n, src); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *Renderer) block(n ast.Node, src []byte) string {
	switch n := n.(type) {
	case *ast.Heading:
		return r.style(r.bold, r.inline(n, src))
	case *ast.Paragraph, *ast.TextBlock:
		return r.inline(n, src)
	case *ast.ThematicBreak:
		return "────────"
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return r.codeLines(n, src)
	case *ast.Blockquote:
		return prefixLines(r.blocks(n, src, "\n\n"), "│ ", "│ ")
	case *ast.List:
		return r.list(n, src)
	default:
		if n.Type() == ast.TypeBlock && n.HasChildren() && n.FirstChild().Type() == ast.TypeBlock {
			return r.blocks(n, src, "\n\n")
		}
		return r.inline(n, src)
	}
}

func (r *Renderer) codeLines(n ast.Node, src []byte) string {
	lines := n.Lines()
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(src)), "\r\n")
		out = append(out, "    "+r.style(r.code, line))
	}
	return strings.Join(out, "\n")
}

func (r *Renderer) list(n *ast.List, src []byte) string {
	sep := "\n\n"
	if n.IsTight {
		sep = "\n"
	}

	var items []string
	i := 0
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d. ", n.Start+i)
		}
		body := r.blocks(item, src, sep)
		items = append(items, prefixLines(body, marker, strings.Repeat(" ", len(marker))))
		i++
	}
	return strings.Join(items, sep)
}

func (r *Renderer) inline(parent ast.Node, src []byte) string {
	var b strings.Builder
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.Emphasis:
			inner := r.inline(n, src)
			if n.Level >= 2 {
				b.WriteString(r.style(r.bold, inner))
			} else {
				b.WriteString(r.style(r.italic, inner))
			}
		case *ast.CodeSpan:
			b.WriteString(r.style(r.code, r.inline(n, src)))
		case *ast.Link:
			label := r.inline(n, src)
			dest := string(n.Destination)
			b.WriteString(r.style(r.link, label))
			if dest != "" && dest != label {
				b.WriteString(" (" + dest + ")")
			}
		case *ast.AutoLink:
			b.WriteString(r.style(r.link, string(n.URL(src))))
		case *ast.Image:
			alt := r.inline(n, src)
			fmt.Fprintf(&b, "[image: %s]", strings.TrimSpace(alt+" "+string(n.Destination)))
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				b.Write(seg.Value(src))
			}
		case *east.Strikethrough:
			b.WriteString(r.style(r.strike, r.inline(n, src)))
		default:
			b.WriteString(r.inline(n, src))
		}
	}
	return b.String()
}

// prefixLines puts first before the first line of s and rest before every
// following non-empty line.
func prefixLines(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = first + line
		case line != "":
			lines[i] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}
