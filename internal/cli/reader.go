package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

type line struct {
	err  error
	text string
}

// NonBlockingReader reads terminal lines while honoring context
// cancellation. One goroutine owns the underlying reader, so a line that
// arrives after its prompt was canceled is handed to the next ReadLine.
type NonBlockingReader struct {
	src   *bufio.Reader
	lines chan line
	start sync.Once
}

// NewNonBlockingReader wraps r. Reading starts on the first ReadLine.
func NewNonBlockingReader(r io.Reader) *NonBlockingReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &NonBlockingReader{src: bufio.NewReader(r), lines: make(chan line)}
}

func (r *NonBlockingReader) pump() {
	defer close(r.lines)
	for {
		text, err := r.src.ReadString('\n')
		if text != "" {
			r.lines <- line{text: text}
		}
		if err != nil {
			r.lines <- line{err: err}
			return
		}
	}
}

// ReadLine returns the next trimmed line. A final line without a newline is
// returned before io.EOF is reported on the next call.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.start.Do(func() { go r.pump() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case l, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}
