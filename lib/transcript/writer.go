// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/protocol"
)

// CompressedExtension marks zstd-compressed transcript files. File
// helpers switch on it; there is no content sniffing.
const CompressedExtension = ".zst"

// Summary aggregates counters over the envelopes seen so far.
type Summary struct {
	// Envelopes counts every appended envelope.
	Envelopes int `json:"envelopes"`

	// Events counts event envelopes.
	Events int `json:"events"`

	// ToolCalls counts event envelopes carrying a tool call.
	ToolCalls int `json:"tool_calls"`

	// Errors counts fatal envelopes plus error events.
	Errors int `json:"errors"`

	// Terminals counts final and fatal envelopes. A well-formed
	// session has exactly one.
	Terminals int `json:"terminals"`
}

func (summary *Summary) add(envelope protocol.Envelope) {
	summary.Envelopes++
	switch message := envelope.(type) {
	case protocol.Event:
		summary.Events++
		switch message.Event.Kind.(type) {
		case contract.ToolCallEvent:
			summary.ToolCalls++
		case contract.ErrorEvent:
			summary.Errors++
		}
	case protocol.Final:
		summary.Terminals++
	case protocol.Fatal:
		summary.Errors++
		summary.Terminals++
	}
}

// Summarize computes the summary of a complete envelope slice.
func Summarize(envelopes []protocol.Envelope) Summary {
	var summary Summary
	for _, envelope := range envelopes {
		summary.add(envelope)
	}
	return summary
}

// Writer appends envelopes to a JSONL sink. Safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	sink     io.Writer
	compress *zstd.Encoder
	closer   io.Closer
	summary  Summary
}

// NewWriter returns a Writer appending plain JSONL to w. The caller
// owns w; Close flushes nothing further.
func NewWriter(w io.Writer) *Writer {
	return &Writer{sink: w}
}

// Create opens a transcript file for writing, truncating any existing
// one. A path ending in ".zst" is transparently zstd-compressed.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating transcript: %w", err)
	}
	writer := &Writer{sink: file, closer: file}
	if strings.HasSuffix(path, CompressedExtension) {
		encoder, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("creating transcript compressor: %w", err)
		}
		writer.sink = encoder
		writer.compress = encoder
	}
	return writer, nil
}

// Append encodes one envelope and writes it as the next JSONL line.
func (writer *Writer) Append(envelope protocol.Envelope) error {
	line, err := protocol.Encode(envelope)
	if err != nil {
		return err
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	if _, err := io.WriteString(writer.sink, line); err != nil {
		return fmt.Errorf("appending transcript line: %w", err)
	}
	writer.summary.add(envelope)
	return nil
}

// Summary returns a snapshot of the counters so far.
func (writer *Writer) Summary() Summary {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	return writer.summary
}

// Close flushes compression (if any) and closes the underlying file
// when the Writer opened it.
func (writer *Writer) Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.compress != nil {
		if err := writer.compress.Close(); err != nil {
			if writer.closer != nil {
				writer.closer.Close()
			}
			return fmt.Errorf("flushing transcript compressor: %w", err)
		}
	}
	if writer.closer != nil {
		if err := writer.closer.Close(); err != nil {
			return fmt.Errorf("closing transcript: %w", err)
		}
	}
	return nil
}

// Open opens a transcript file for reading, transparently
// decompressing a ".zst" one.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	if !strings.HasSuffix(path, CompressedExtension) {
		return file, nil
	}
	decoder, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening transcript decompressor: %w", err)
	}
	return &decompressReader{decoder: decoder, file: file}, nil
}

type decompressReader struct {
	decoder *zstd.Decoder
	file    *os.File
}

func (reader *decompressReader) Read(p []byte) (int, error) {
	return reader.decoder.Read(p)
}

func (reader *decompressReader) Close() error {
	reader.decoder.Close()
	return reader.file.Close()
}

// ReadAll decodes every envelope in a transcript file. Decode failures
// abort the read; use the stream parser directly for per-line error
// tolerance.
func ReadAll(path string) ([]protocol.Envelope, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var envelopes []protocol.Envelope
	decoder := protocol.NewStreamDecoder(reader)
	for {
		envelope, err := decoder.Next()
		if err == io.EOF {
			return envelopes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading transcript %s: %w", path, err)
		}
		envelopes = append(envelopes, envelope)
	}
}
