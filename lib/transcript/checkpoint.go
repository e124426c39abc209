// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/abp/lib/codec"
	"github.com/bureau-foundation/abp/lib/protocol"
)

// checkpointFormatVersion is bumped on incompatible layout changes.
const checkpointFormatVersion = 1

// hashPrefixLen is the number of hex digits of the content hash used
// in checkpoint file names.
const hashPrefixLen = 16

// Checkpoint is a self-contained snapshot of an envelope stream.
//
// Envelopes are stored as their canonical JSONL encodings rather than
// as CBOR structures: the JSON codec is the one place that knows how
// to flatten the tagged envelope union, and canonical encoding makes
// the stored bytes deterministic. The CBOR wrapper adds the format
// version and summary, deterministically encoded so the whole artifact
// hashes stably.
type Checkpoint struct {
	FormatVersion int      `json:"format_version"`
	Summary       Summary  `json:"summary"`
	Lines         []string `json:"lines"`
}

// NewCheckpoint snapshots the given envelopes.
func NewCheckpoint(envelopes []protocol.Envelope) (Checkpoint, error) {
	lines := make([]string, 0, len(envelopes))
	for _, envelope := range envelopes {
		line, err := protocol.Encode(envelope)
		if err != nil {
			return Checkpoint{}, err
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}
	return Checkpoint{
		FormatVersion: checkpointFormatVersion,
		Summary:       Summarize(envelopes),
		Lines:         lines,
	}, nil
}

// Envelopes decodes the snapshot back into envelope values.
func (checkpoint Checkpoint) Envelopes() ([]protocol.Envelope, error) {
	envelopes := make([]protocol.Envelope, 0, len(checkpoint.Lines))
	for i, line := range checkpoint.Lines {
		envelope, err := protocol.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("checkpoint line %d: %w", i, err)
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes, nil
}

// encode returns the deterministic CBOR bytes and their BLAKE3 hash.
func (checkpoint Checkpoint) encode() ([]byte, string, error) {
	data, err := codec.Marshal(checkpoint)
	if err != nil {
		return nil, "", fmt.Errorf("encoding checkpoint: %w", err)
	}
	sum := blake3.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// Hash returns the hex BLAKE3 hash of the encoded checkpoint.
func (checkpoint Checkpoint) Hash() (string, error) {
	_, hash, err := checkpoint.encode()
	return hash, err
}

// Write stores the checkpoint under dir as
// "checkpoint-<hash-prefix>.cbor" and returns the full path. Writing
// the same transcript twice produces the same file name with the same
// bytes, so an existing file is left alone.
func (checkpoint Checkpoint) Write(dir string) (string, error) {
	data, hash, err := checkpoint.encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("checkpoint-%s.cbor", hash[:hashPrefixLen]))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publishing checkpoint: %w", err)
	}
	return path, nil
}

// LoadCheckpoint reads a checkpoint file, verifying its format version.
func LoadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("reading checkpoint: %w", err)
	}
	var checkpoint Checkpoint
	if err := codec.Unmarshal(data, &checkpoint); err != nil {
		return Checkpoint{}, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	if checkpoint.FormatVersion != checkpointFormatVersion {
		return Checkpoint{}, fmt.Errorf("checkpoint %s has format version %d, expected %d",
			path, checkpoint.FormatVersion, checkpointFormatVersion)
	}
	return checkpoint, nil
}
