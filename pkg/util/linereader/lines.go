package linereader

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Line is a line read from the underlying reader, or the error that ended reading.
type Line struct {
	Text string
	Err  error
}

// Reader splits an io.Reader into lines read in the background.
type Reader struct {
	lines chan Line
	done  chan struct{}
	once  sync.Once
}

// New starts reading lines from r.
// Trailing line breaks are removed and invalid UTF-8 sequences dropped.
// The last value sent has Err set to io.EOF or the read error.
func New(r io.Reader) *Reader {
	lr := &Reader{
		lines: make(chan Line),
		done:  make(chan struct{}),
	}
	go lr.read(bufio.NewReader(r))
	return lr
}

func (lr *Reader) read(br *bufio.Reader) {
	defer close(lr.lines)
	for {
		s, err := br.ReadString('\n')
		if s != "" {
			s = strings.ToValidUTF8(strings.TrimRight(s, "\r\n"), "")
			if !lr.send(Line{Text: s}) {
				return
			}
		}
		if err != nil {
			lr.send(Line{Err: err})
			return
		}
	}
}

func (lr *Reader) send(l Line) bool {
	select {
	case lr.lines <- l:
		return true
	case <-lr.done:
		return false
	}
}

// Next returns the next line.
// It returns ErrTimeout if no line arrived within interval, the reader keeps going
// and Next can be called again. io.EOF is returned once the input is exhausted.
func (lr *Reader) Next(ctx context.Context, interval time.Duration) (string, error) {
	l, err := Recv(ctx, lr.lines, interval)
	if err == ErrClosed {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if l.Err != nil {
		return "", l.Err
	}
	return l.Text, nil
}

// Close stops the background reader. It does not close the underlying reader.
func (lr *Reader) Close() {
	lr.once.Do(func() { close(lr.done) })
}
