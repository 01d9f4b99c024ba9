// ABOUTME: Line-buffered renderer for replies that arrive in fragments
// ABOUTME: Emits each completed line as soon as its newline arrives

package render

import (
	"io"
	"strings"
	"sync"
)

// LineWriter renders streamed markdown one line at a time. Inline markup is
// local to a line in practice, so rendering per line keeps output live while
// still removing it. Fenced code blocks pass through indented.
type LineWriter struct {
	r   *Renderer
	out io.Writer

	mu      sync.Mutex
	pending strings.Builder
	inFence bool
}

// NewLineWriter creates a LineWriter writing rendered lines to out.
func NewLineWriter(r *Renderer, out io.Writer) *LineWriter {
	return &LineWriter{r: r, out: out}
}

// WriteString buffers fragment and writes every line it completes.
func (w *LineWriter) WriteString(fragment string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.WriteString(fragment)
	buf := w.pending.String()
	idx := strings.LastIndexByte(buf, '\n')
	if idx < 0 {
		return len(fragment), nil
	}

	complete, rest := buf[:idx], buf[idx+1:]
	w.pending.Reset()
	w.pending.WriteString(rest)

	for _, line := range strings.Split(complete, "\n") {
		if _, err := io.WriteString(w.out, w.renderLine(line)+"\n"); err != nil {
			return 0, err
		}
	}
	return len(fragment), nil
}

// Flush writes the unterminated last line, if any, and resets fence state
// for the next reply.
func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	defer func() { w.inFence = false }()
	if w.pending.Len() == 0 {
		return nil
	}
	line := w.pending.String()
	w.pending.Reset()
	_, err := io.WriteString(w.out, w.renderLine(line)+"\n")
	return err
}

func (w *LineWriter) renderLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
		w.inFence = !w.inFence
		return ""
	}
	if w.inFence {
		return "    " + w.r.style(w.r.code, line)
	}
	if trimmed == "" {
		return ""
	}

	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	if len(strings.ReplaceAll(indent, "\t", "    ")) >= 4 {
		// would parse as an indented code block on its own
		return line
	}
	return indent + w.r.Render(trimmed)
}
