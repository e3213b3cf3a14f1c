package stream

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// event is one dispatched Server-Sent Event.
type event struct {
	Name string
	ID   string
	Data string
}

// maxLineBytes bounds a single SSE line; larger payloads are a protocol error.
const maxLineBytes = 4 << 20

var errLineTooLong = errors.New("sse line exceeds limit")

// readEvents parses an SSE byte stream and calls fn for every complete event
// that carries data. It returns nil on a clean end of stream.
func readEvents(r io.Reader, fn func(event) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var (
		cur  event
		data strings.Builder
		has  bool
	)
	for {
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if line == "" {
			if has {
				cur.Data = data.String()
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur, has = event{}, false
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / keepalive
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Name = value
		case "data":
			if has {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			has = true
		case "id":
			cur.ID = value
		}
	}
}

// readLine returns one line without its CR/LF terminator.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := br.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > maxLineBytes {
			return "", errLineTooLong
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && sb.Len() > 0 {
			// unterminated last line: an incomplete event is discarded
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimRight(sb.String(), "\r\n"), nil
}
