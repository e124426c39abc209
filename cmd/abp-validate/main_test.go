// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/bureau-foundation/abp/lib/protocol"
)

const validSession = `{"t":"hello","contract_version":"abp/v0.1","backend":{"id":"mock","backend_version":"1.0","adapter_version":"0.1"},"capabilities":{"streaming":"native"},"mode":"mapped"}
{"t":"run","id":"run-1","work_order":{"id":"wo-1","task":"demo"}}
{"t":"event","ref_id":"run-1","event":{"ts":"2026-02-10T15:30:00Z","type":"assistant_message","text":"hi"}}
{"t":"final","ref_id":"run-1","receipt":{"meta":{"run_id":"run-1","work_order_id":"wo-1","contract_version":"abp/v0.1"},"backend":{"id":"mock"},"outcome":"complete"}}
`

func TestValidateCleanTranscript(t *testing.T) {
	var out strings.Builder
	clean, err := validate(strings.NewReader(validSession), &out, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !clean {
		t.Errorf("clean transcript flagged dirty:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "4 envelopes") {
		t.Errorf("summary line missing:\n%s", out.String())
	}
}

func TestValidateReportsBadLineAndContinues(t *testing.T) {
	corrupted := strings.Replace(validSession, `{"t":"run"`, `{"t":"run"garbage`, 1)
	var out strings.Builder
	clean, err := validate(strings.NewReader(corrupted), &out, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if clean {
		t.Error("corrupt transcript passed")
	}
	if !strings.Contains(out.String(), "line 2:") {
		t.Errorf("bad line not reported:\n%s", out.String())
	}
	// The final envelope after the corrupt line is still counted.
	if !strings.Contains(out.String(), "3 envelopes") {
		t.Errorf("lines after the corrupt one were dropped:\n%s", out.String())
	}
}

func TestValidateReportsSequenceErrors(t *testing.T) {
	headless := strings.Join(strings.Split(validSession, "\n")[1:], "\n")
	var out strings.Builder
	clean, err := validate(strings.NewReader(headless), &out, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if clean {
		t.Error("transcript without hello passed")
	}
	if !strings.Contains(out.String(), "sequence:") {
		t.Errorf("sequence error not reported:\n%s", out.String())
	}
}

func TestValidateReportsFieldErrors(t *testing.T) {
	input := `{"t":"hello","contract_version":"abp/v0.1","backend":{"id":"mock"},"capabilities":{}}
{"t":"run","id":"run-1","work_order":{"task":""}}
{"t":"final","ref_id":"run-1","receipt":{"meta":{},"backend":{"id":"mock"},"outcome":"complete"}}
`
	var out strings.Builder
	clean, err := validate(strings.NewReader(input), &out, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if clean {
		t.Error("empty task passed field validation")
	}
	if !strings.Contains(out.String(), "work_order.task") {
		t.Errorf("field error not reported:\n%s", out.String())
	}
}

func TestValidateQuietSuppressesWarnings(t *testing.T) {
	// The hello lacks backend_version/adapter_version, which draws
	// warnings in verbose mode only.
	input := `{"t":"hello","contract_version":"abp/v0.1","backend":{"id":"mock"},"capabilities":{}}
{"t":"fatal","ref_id":null,"error":"backend unreachable"}
`
	var verbose strings.Builder
	clean, err := validate(strings.NewReader(input), &verbose, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !clean {
		t.Errorf("warnings alone should not dirty the transcript:\n%s", verbose.String())
	}
	if !strings.Contains(verbose.String(), "warning:") {
		t.Errorf("expected warnings in verbose output:\n%s", verbose.String())
	}

	var quiet strings.Builder
	if _, err := validate(strings.NewReader(input), &quiet, true); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if strings.Contains(quiet.String(), "warning:") {
		t.Errorf("quiet mode printed warnings:\n%s", quiet.String())
	}
}

func TestFormatWarningRendersKindSpecificFields(t *testing.T) {
	missing := protocol.ValidationWarning{
		Kind:  protocol.WarnMissingOptionalField,
		Field: "backend.backend_version",
	}
	if got := formatWarning(missing); got != "missing_optional_field backend.backend_version" {
		t.Errorf("missing-field warning = %q", got)
	}

	large := protocol.ValidationWarning{
		Kind:           protocol.WarnLargePayload,
		Size:           12582912,
		MaxRecommended: 10485760,
	}
	got := formatWarning(large)
	if !strings.Contains(got, "12582912") || !strings.Contains(got, "10485760") {
		t.Errorf("large-payload warning omits sizes: %q", got)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("large-payload warning has trailing space: %q", got)
	}
}
