// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// maxRecommendedPayload is the serialized size above which a single
// envelope draws a LargePayload warning. Nothing is rejected at this
// size; it exists to surface payloads that should probably be artifacts
// instead of inline JSON.
const maxRecommendedPayload = 10 * 1024 * 1024

// SequenceErrorKind discriminates [SequenceError] values.
type SequenceErrorKind string

const (
	// SeqMissingHello: the transcript contains no hello envelope.
	SeqMissingHello SequenceErrorKind = "missing_hello"

	// SeqHelloNotFirst: a hello exists but not at index 0.
	SeqHelloNotFirst SequenceErrorKind = "hello_not_first"

	// SeqMissingTerminal: no final and no fatal envelope exists.
	SeqMissingTerminal SequenceErrorKind = "missing_terminal"

	// SeqMultipleTerminals: more than one terminal envelope exists.
	SeqMultipleTerminals SequenceErrorKind = "multiple_terminals"

	// SeqRefIDMismatch: an envelope's ref_id does not match the
	// current run id.
	SeqRefIDMismatch SequenceErrorKind = "ref_id_mismatch"

	// SeqOutOfOrderEvents: an event precedes the first run, or any
	// envelope follows the first terminal.
	SeqOutOfOrderEvents SequenceErrorKind = "out_of_order_events"
)

// SequenceError is one violation of the expected protocol flow
// hello → run → event* → (final | fatal). Values are comparable, so
// tests and callers can match them exactly.
type SequenceError struct {
	Kind SequenceErrorKind

	// Position is the index where the hello was found, for
	// [SeqHelloNotFirst].
	Position int

	// Expected and Found are the run id and the offending ref_id, for
	// [SeqRefIDMismatch].
	Expected string
	Found    string
}

func (e SequenceError) Error() string {
	switch e.Kind {
	case SeqMissingHello:
		return "sequence is missing a hello envelope"
	case SeqHelloNotFirst:
		return fmt.Sprintf("hello envelope at position %d, expected at 0", e.Position)
	case SeqMissingTerminal:
		return "sequence has no terminal (final or fatal) envelope"
	case SeqMultipleTerminals:
		return "sequence contains multiple terminal envelopes"
	case SeqRefIDMismatch:
		return fmt.Sprintf("ref_id mismatch: expected %q, found %q", e.Expected, e.Found)
	case SeqOutOfOrderEvents:
		return "envelope found outside the run→terminal window"
	}
	return string(e.Kind)
}

// ValidateSequence checks an ordered transcript against the protocol
// flow and returns every violation found. The checks are independent and
// non-short-circuiting: a transcript can draw several errors at once,
// and a caller decides severity. An empty transcript yields exactly
// {missing hello, missing terminal}.
//
// The ref_id checks track the id of the most recently seen run; before
// any run exists, terminal envelopes are not checked against anything
// (hello followed directly by fatal is a valid failure transcript).
// RefIDMismatch is reported once per offending envelope;
// OutOfOrderEvents is reported at most once per transcript.
func ValidateSequence(envelopes []Envelope) []SequenceError {
	var errs []SequenceError

	helloPos := -1
	firstTerminal := -1
	terminalCount := 0
	for i, envelope := range envelopes {
		switch envelope.(type) {
		case Hello:
			if helloPos < 0 {
				helloPos = i
			}
		case Final, Fatal:
			terminalCount++
			if firstTerminal < 0 {
				firstTerminal = i
			}
		}
	}

	if helloPos < 0 {
		errs = append(errs, SequenceError{Kind: SeqMissingHello})
	} else if helloPos != 0 {
		errs = append(errs, SequenceError{Kind: SeqHelloNotFirst, Position: helloPos})
	}

	if terminalCount == 0 {
		errs = append(errs, SequenceError{Kind: SeqMissingTerminal})
	} else if terminalCount > 1 {
		errs = append(errs, SequenceError{Kind: SeqMultipleTerminals})
	}

	var currentRunID *string
	runSeen := false
	outOfOrder := false
	checkRef := func(refID string) {
		if currentRunID != nil && refID != *currentRunID {
			errs = append(errs, SequenceError{
				Kind:     SeqRefIDMismatch,
				Expected: *currentRunID,
				Found:    refID,
			})
		}
	}
	for i, envelope := range envelopes {
		if firstTerminal >= 0 && i > firstTerminal {
			outOfOrder = true
		}
		switch concrete := envelope.(type) {
		case Run:
			runSeen = true
			id := concrete.ID
			currentRunID = &id
		case Event:
			if !runSeen {
				outOfOrder = true
			}
			checkRef(concrete.RefID)
		case Final:
			checkRef(concrete.RefID)
		case Fatal:
			if concrete.RefID != nil {
				checkRef(*concrete.RefID)
			}
		}
	}
	if outOfOrder {
		errs = append(errs, SequenceError{Kind: SeqOutOfOrderEvents})
	}

	return errs
}

// ValidationErrorKind discriminates [ValidationError] values.
type ValidationErrorKind string

const (
	// FieldEmpty: a required field is present but empty.
	FieldEmpty ValidationErrorKind = "empty_field"

	// FieldInvalidVersion: contract_version does not parse as a
	// protocol version.
	FieldInvalidVersion ValidationErrorKind = "invalid_version"
)

// ValidationError is a hard violation found on a single envelope.
type ValidationError struct {
	Kind ValidationErrorKind

	// Field names the offending field.
	Field string

	// Version is the unparseable version string, for
	// [FieldInvalidVersion].
	Version string
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case FieldEmpty:
		return fmt.Sprintf("field must not be empty: %s", e.Field)
	case FieldInvalidVersion:
		return fmt.Sprintf("invalid protocol version: %q", e.Version)
	}
	return string(e.Kind)
}

// WarningKind discriminates [ValidationWarning] values.
type WarningKind string

const (
	// WarnMissingOptionalField: a commonly expected optional field is
	// absent.
	WarnMissingOptionalField WarningKind = "missing_optional_field"

	// WarnLargePayload: the serialized envelope exceeds the
	// recommended maximum size.
	WarnLargePayload WarningKind = "large_payload"
)

// ValidationWarning is a non-fatal observation about an envelope.
type ValidationWarning struct {
	Kind WarningKind

	// Field names the absent field, for [WarnMissingOptionalField].
	Field string

	// Size and MaxRecommended are in bytes, for [WarnLargePayload].
	Size           int
	MaxRecommended int
}

// ValidationResult is the outcome of validating a single envelope.
// Warnings alone leave Valid true.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

func (result *ValidationResult) pushError(err ValidationError) {
	result.Valid = false
	result.Errors = append(result.Errors, err)
}

func (result *ValidationResult) pushWarning(warning ValidationWarning) {
	result.Warnings = append(result.Warnings, warning)
}

// Validate checks a single envelope's fields: required strings must be
// non-empty (run id, ref_id, fatal error text, backend id), the hello
// contract_version must parse, and absent optional fields draw warnings.
func Validate(envelope Envelope) ValidationResult {
	result := ValidationResult{Valid: true}

	if line, err := Encode(envelope); err == nil && len(line) > maxRecommendedPayload {
		result.pushWarning(ValidationWarning{
			Kind:           WarnLargePayload,
			Size:           len(line),
			MaxRecommended: maxRecommendedPayload,
		})
	}

	switch concrete := envelope.(type) {
	case Hello:
		if concrete.ContractVersion == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "contract_version"})
		} else if _, err := ParseVersion(concrete.ContractVersion); err != nil {
			result.pushError(ValidationError{Kind: FieldInvalidVersion, Version: concrete.ContractVersion})
		}
		if concrete.Backend.ID == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "backend.id"})
		}
		if concrete.Backend.BackendVersion == nil {
			result.pushWarning(ValidationWarning{Kind: WarnMissingOptionalField, Field: "backend.backend_version"})
		}
		if concrete.Backend.AdapterVersion == nil {
			result.pushWarning(ValidationWarning{Kind: WarnMissingOptionalField, Field: "backend.adapter_version"})
		}

	case Run:
		if concrete.ID == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "id"})
		}
		if concrete.WorkOrder.Task == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "work_order.task"})
		}

	case Event:
		if concrete.RefID == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "ref_id"})
		}

	case Final:
		if concrete.RefID == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "ref_id"})
		}

	case Fatal:
		if concrete.Error == "" {
			result.pushError(ValidationError{Kind: FieldEmpty, Field: "error"})
		}
		if concrete.RefID == nil {
			result.pushWarning(ValidationWarning{Kind: WarnMissingOptionalField, Field: "ref_id"})
		}
	}

	return result
}
