// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "bytes"

// Result is the outcome of decoding one logical line: either an envelope
// or that line's decode error, never both.
type Result struct {
	Envelope Envelope
	Err      error
}

// StreamParser incrementally splits arbitrary byte chunks into JSONL
// lines and decodes each one. It never loses or duplicates a logical
// line regardless of how the input is chunked — including chunks that
// split a multi-byte UTF-8 codepoint or a JSON token, since splitting
// happens on raw bytes and decoding only on complete lines.
//
// The internal buffer holds the unterminated tail since the last
// newline. The parser imposes no line size limit; a peer that never
// sends a newline grows the buffer without bound.
type StreamParser struct {
	buf []byte
}

// NewStreamParser returns an empty parser.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Push appends a chunk and returns one result per complete line now
// available, in order. Lines that are blank after trimming are silently
// skipped and produce no result. A line that fails to decode yields a
// Result with Err set; parsing continues with subsequent lines.
func (parser *StreamParser) Push(data []byte) []Result {
	parser.buf = append(parser.buf, data...)

	var results []Result
	for {
		newline := bytes.IndexByte(parser.buf, '\n')
		if newline < 0 {
			return results
		}
		line := string(parser.buf[:newline])
		parser.buf = parser.buf[newline+1:]

		if result, ok := decodeLine(line); ok {
			results = append(results, result)
		}
	}
}

// Finish flushes the buffer, treating any non-empty remainder as one
// final unterminated line. It returns zero or one results and leaves the
// parser empty, ready for reuse.
func (parser *StreamParser) Finish() []Result {
	remainder := string(parser.buf)
	parser.buf = nil

	if result, ok := decodeLine(remainder); ok {
		return []Result{result}
	}
	return nil
}

// Empty reports whether the parser holds no buffered bytes.
func (parser *StreamParser) Empty() bool {
	return len(parser.buf) == 0
}

// BufferedLen returns the number of buffered bytes not yet consumed.
func (parser *StreamParser) BufferedLen() int {
	return len(parser.buf)
}

// Reset discards any buffered data.
func (parser *StreamParser) Reset() {
	parser.buf = nil
}

// decodeLine decodes one logical line. The second return is false for
// blank lines, which produce no result at all.
func decodeLine(line string) (Result, bool) {
	if isBlank(line) {
		return Result{}, false
	}
	envelope, err := Decode(line)
	if err != nil {
		return Result{Err: err}, true
	}
	return Result{Envelope: envelope}, true
}

func isBlank(line string) bool {
	for _, b := range []byte(line) {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
