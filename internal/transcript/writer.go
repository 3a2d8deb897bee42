package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Writer appends transcript records to an underlying writer.
//
// The first write error is sticky: every later call returns it again, so
// callers may check only the result of Flush.
type Writer struct {
	w   *bufio.Writer
	err error
	n   int
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes the three header lines.
func (tw *Writer) WriteHeader(h Header) error {
	for _, line := range h.Lines() {
		if err := tw.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

// WriteInput writes the encoded user input of a turn.
func (tw *Writer) WriteInput(encoded string) error {
	return tw.writeLabeled(LabelFromUser, encoded)
}

// WriteCount writes the number of outputs produced by a turn.
func (tw *Writer) WriteCount(n int) error {
	return tw.writeLine(strconv.Itoa(n))
}

// WriteOutput writes one output record.
func (tw *Writer) WriteOutput(o Output) error {
	if _, ok := KindForLabel(o.Kind.String()); !ok {
		return tw.fail(fmt.Errorf("write output: unknown kind %v", o.Kind))
	}
	return tw.writeLabeled(o.Kind.String(), o.Payload)
}

// WriteException writes the encoded failure message of a turn.
func (tw *Writer) WriteException(encoded string) error {
	return tw.writeLabeled(LabelException, encoded)
}

// WriteState writes the encoded snapshot line that follows a turn's outputs.
func (tw *Writer) WriteState(encoded string) error {
	return tw.writeLabeled(LabelState, encoded)
}

// Flush writes any buffered data to the underlying writer.
func (tw *Writer) Flush() error {
	if tw.err != nil {
		return tw.err
	}
	if err := tw.w.Flush(); err != nil {
		return tw.fail(fmt.Errorf("flush transcript: %w", err))
	}
	return nil
}

// Lines returns the number of lines written so far.
func (tw *Writer) Lines() int {
	return tw.n
}

func (tw *Writer) writeLabeled(label, payload string) error {
	return tw.writeLine(label + ":" + payload)
}

func (tw *Writer) writeLine(line string) error {
	if tw.err != nil {
		return tw.err
	}
	if strings.ContainsAny(line, "\r\n") {
		return tw.fail(fmt.Errorf("line %d: payload spans multiple lines", tw.n+1))
	}
	if _, err := tw.w.WriteString(line); err != nil {
		return tw.fail(fmt.Errorf("line %d: %w", tw.n+1, err))
	}
	if err := tw.w.WriteByte('\n'); err != nil {
		return tw.fail(fmt.Errorf("line %d: %w", tw.n+1, err))
	}
	tw.n++
	return nil
}

func (tw *Writer) fail(err error) error {
	tw.err = err
	return err
}
