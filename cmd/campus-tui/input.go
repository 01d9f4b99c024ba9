// ABOUTME: Line input shared by command prompts and password entry
// ABOUTME: One read at a time; a read left behind by a cancelled prompt is handed to the next one

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

type lineResult struct {
	line string
	err  error
}

// lineReader reads lines from the input on demand. Not safe for concurrent
// use; only the command loop calls it.
type lineReader struct {
	r       *bufio.Reader
	results chan lineResult
	pending bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:       bufio.NewReader(r),
		results: make(chan lineResult, 1),
	}
}

// next returns the next line without its line ending. A read abandoned
// because ctx ended stays outstanding and its line goes to the next call.
func (l *lineReader) next(ctx context.Context) (string, error) {
	if !l.pending {
		l.pending = true
		go func() {
			line, err := l.r.ReadString('\n')
			if errors.Is(err, io.EOF) && line != "" {
				err = nil
			}
			l.results <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-l.results:
		l.pending = false
		return res.line, res.err
	}
}

// idle reports whether the underlying input may be read directly: no read
// is outstanding and nothing typed ahead sits in the buffer.
func (l *lineReader) idle() bool {
	return !l.pending && l.r.Buffered() == 0
}
