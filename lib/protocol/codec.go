// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/abp/lib/contract"
)

// Encode serializes an envelope to a single newline-terminated JSON
// line. Object keys are emitted in sorted order, so the same envelope
// always encodes to the same bytes.
func Encode(envelope Envelope) (string, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encoding %s envelope: %w", envelope.EnvelopeType(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("flattening %s envelope: %w", envelope.EnvelopeType(), err)
	}
	fields["t"], err = json.Marshal(envelope.EnvelopeType())
	if err != nil {
		return "", err
	}
	line, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding %s envelope: %w", envelope.EnvelopeType(), err)
	}
	return string(line) + "\n", nil
}

// requiredFields lists the keys that must be present on the wire for
// each envelope type. Optional fields (hello mode, fatal ref_id and
// error_code) are absent from these lists.
var requiredFields = map[Type][]string{
	TypeHello: {"contract_version", "backend", "capabilities"},
	TypeRun:   {"id", "work_order"},
	TypeEvent: {"ref_id", "event"},
	TypeFinal: {"ref_id", "receipt"},
	TypeFatal: {"error"},
}

// Decode deserializes a single JSON line into an envelope. It fails on
// invalid JSON, on a missing or unrecognized "t" discriminator, on a
// required field being absent, and on empty or whitespace-only input.
// Unknown extra fields are ignored.
func Decode(line string) (Envelope, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, fmt.Errorf("empty envelope line")
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	tagJSON, ok := fields["t"]
	if !ok {
		return nil, fmt.Errorf("envelope is missing discriminator \"t\"")
	}
	var tag Type
	if err := json.Unmarshal(tagJSON, &tag); err != nil {
		return nil, fmt.Errorf("invalid envelope discriminator: %w", err)
	}

	required, known := requiredFields[tag]
	if !known {
		return nil, fmt.Errorf("unknown envelope type %q", tag)
	}
	for _, field := range required {
		if _, ok := fields[field]; !ok {
			return nil, fmt.Errorf("%s envelope is missing required field %q", tag, field)
		}
	}

	data := []byte(trimmed)
	switch tag {
	case TypeHello:
		var hello Hello
		if err := json.Unmarshal(data, &hello); err != nil {
			return nil, fmt.Errorf("decoding hello envelope: %w", err)
		}
		if hello.Mode == "" {
			hello.Mode = contract.ModeMapped
		}
		return hello, nil
	case TypeRun:
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("decoding run envelope: %w", err)
		}
		return run, nil
	case TypeEvent:
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("decoding event envelope: %w", err)
		}
		return event, nil
	case TypeFinal:
		var final Final
		if err := json.Unmarshal(data, &final); err != nil {
			return nil, fmt.Errorf("decoding final envelope: %w", err)
		}
		return final, nil
	case TypeFatal:
		var fatal Fatal
		if err := json.Unmarshal(data, &fatal); err != nil {
			return nil, fmt.Errorf("decoding fatal envelope: %w", err)
		}
		return fatal, nil
	}
	// Unreachable: tag membership was checked above.
	return nil, fmt.Errorf("unknown envelope type %q", tag)
}

// WriteEnvelope encodes one envelope and writes it as a JSONL line.
func WriteEnvelope(writer io.Writer, envelope Envelope) error {
	line, err := Encode(envelope)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(writer, line); err != nil {
		return fmt.Errorf("writing %s envelope: %w", envelope.EnvelopeType(), err)
	}
	return nil
}

// WriteEnvelopes writes multiple envelopes as consecutive JSONL lines.
func WriteEnvelopes(writer io.Writer, envelopes []Envelope) error {
	for _, envelope := range envelopes {
		if err := WriteEnvelope(writer, envelope); err != nil {
			return err
		}
	}
	return nil
}

// StreamDecoder lazily decodes envelopes from a reader, one non-blank
// line at a time. It is not restartable: once the underlying reader hits
// EOF the decoder is exhausted.
type StreamDecoder struct {
	reader *bufio.Reader
	done   bool
}

// NewStreamDecoder returns a decoder reading JSONL lines from reader.
// Lines of any length are supported.
func NewStreamDecoder(reader io.Reader) *StreamDecoder {
	return &StreamDecoder{reader: bufio.NewReader(reader)}
}

// Next returns the next decoded envelope. Blank lines are skipped. A
// line that fails to decode is reported as an error for that line only;
// subsequent calls continue with the following line. Next returns
// [io.EOF] once the stream is exhausted.
func (decoder *StreamDecoder) Next() (Envelope, error) {
	for {
		if decoder.done {
			return nil, io.EOF
		}
		line, err := decoder.reader.ReadString('\n')
		if err == io.EOF {
			// A non-empty remainder without a trailing newline is
			// still one final line.
			decoder.done = true
			if strings.TrimSpace(line) == "" {
				return nil, io.EOF
			}
		} else if err != nil {
			decoder.done = true
			return nil, fmt.Errorf("reading envelope stream: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return Decode(line)
	}
}
