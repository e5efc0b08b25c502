// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package protocol

import (
	"bufio"
	"github.com/pkg/errors"
	"io"
	"strings"
)

// MaxLineLength is the longest line, without its terminator, accepted by a LineReader.
const MaxLineLength = 4096

// ErrLineTooLong is returned when a line does not fit in MaxLineLength. The stream
// can not be resynchronized after it.
var ErrLineTooLong = errors.New("line too long")

// LineReader reads newline terminated messages. A trailing "\r" is dropped.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	// Room for the "\r\n" terminator.
	return &LineReader{r: bufio.NewReaderSize(r, MaxLineLength+2)}
}

// ReadLine returns the next line without its terminator. A final line that is not
// terminated is still returned, the following call reports io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	b, err := lr.r.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(b) > 0:
		err = nil
	case err != nil:
		return "", err
	}

	line := strings.TrimSuffix(strings.TrimSuffix(string(b), "\n"), "\r")
	if len(line) > MaxLineLength {
		return "", ErrLineTooLong
	}

	return line, nil
}

// WriteLine writes s followed by "\n" in a single Write call.
func WriteLine(w io.Writer, s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return errors.New("message contains a line terminator")
	}

	_, err := io.WriteString(w, s+"\n")
	return err
}
