package events

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	// ContentType is the content type of an event stream
	ContentType = "text/event-stream"
	dataPrefix  = "data: "
)

// Frame returns the server-sent event frame of text.
// Each line of a multi-line text gets its own data field.
func Frame(text string) []byte {
	var b bytes.Buffer
	for _, l := range strings.Split(text, "\n") {
		b.WriteString(dataPrefix)
		b.WriteString(strings.TrimRight(l, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// Encode writes the frame of e to w.
func Encode(w io.Writer, e Event) error {
	_, err := w.Write(Frame(e.Text))
	return err
}

// Decoder reads events from a server-sent event stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event of the stream, io.EOF at the end of the stream.
// Frames without data are skipped.
func (d *Decoder) Next() (Event, error) {
	var data []string
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return Event{}, errors.Wrap(err, "cannot read event stream")
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "" && len(data) > 0:
			return Parse(strings.Join(data, "\n")), nil
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		if err == io.EOF {
			if len(data) > 0 {
				return Parse(strings.Join(data, "\n")), nil
			}
			return Event{}, io.EOF
		}
	}
}
