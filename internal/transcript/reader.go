package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single transcript line.
const MaxLineSize = 1 << 20

// ErrTruncatedHeader is returned by ReadHeader when the transcript ends
// before all three header lines.
var ErrTruncatedHeader = errors.New("truncated header")

// Reader reads transcript lines sequentially and tracks line numbers.
type Reader struct {
	s    *bufio.Scanner
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Reader{s: s}
}

// ReadLine returns the next raw line without its terminator.
// Returns io.EOF when the transcript is exhausted.
func (r *Reader) ReadLine() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", fmt.Errorf("read line %d: %w", r.line+1, err)
		}
		return "", io.EOF
	}
	r.line++
	return strings.TrimSuffix(r.s.Text(), "\r"), nil
}

// ReadLabeled returns the next line split at its first colon.
// A line without a colon yields an empty label and the whole line as payload.
func (r *Reader) ReadLabeled() (label, payload string, err error) {
	line, err := r.ReadLine()
	if err != nil {
		return "", "", err
	}
	label, payload = SplitLabel(line)
	return label, payload, nil
}

// ReadHeader reads the three header lines.
func (r *Reader) ReadHeader() (Header, error) {
	var lines [3]string
	for i := range lines {
		line, err := r.ReadLine()
		if err == io.EOF {
			return Header{}, fmt.Errorf("%w: %d of 3 lines", ErrTruncatedHeader, i)
		}
		if err != nil {
			return Header{}, err
		}
		lines[i] = line
	}
	return Header{Locale: lines[0], State: lines[1], Entities: lines[2]}, nil
}

// Line returns the number of the line most recently read (1-based).
func (r *Reader) Line() int {
	return r.line
}

// SplitLabel splits "LABEL:payload" at the first colon.
func SplitLabel(line string) (label, payload string) {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return "", line
}
