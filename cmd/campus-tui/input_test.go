// ABOUTME: Tests for the shared line reader
// ABOUTME: Covers cancelled reads handing their line on, typed-ahead input and end of input

package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader_CancelledReadIsHandedOn(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := newLineReader(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := lr.next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, lr.idle(), "the abandoned read is still outstanding")

	go func() { _, _ = pw.Write([]byte("secret\n")) }()

	line, err := lr.next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", line)
	assert.True(t, lr.idle())
}

func TestLineReader_TypedAheadIsBuffered(t *testing.T) {
	lr := newLineReader(strings.NewReader("/login awa@uvci.edu.ci\r\npassword123\n"))
	assert.True(t, lr.idle())

	line, err := lr.next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/login awa@uvci.edu.ci", line)
	assert.False(t, lr.idle(), "the password line is already buffered and must be read from the buffer")

	line, err = lr.next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "password123", line)
}

func TestLineReader_LastLineWithoutNewline(t *testing.T) {
	lr := newLineReader(strings.NewReader("bye"))

	line, err := lr.next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bye", line)

	_, err = lr.next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
