// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/abp/lib/contract"
)

func sampleHello() Hello {
	backendVersion := "1.4.2"
	return NewHello(contract.Version,
		contract.BackendIdentity{ID: "claude-code", BackendVersion: &backendVersion},
		contract.Manifest{
			contract.CapStreaming: contract.Native(),
			contract.CapMCPClient: contract.Restricted("stdio servers only"),
		})
}

func sampleRun() Run {
	return Run{
		ID: "run-1",
		WorkOrder: contract.WorkOrder{
			ID:   "wo-1",
			Task: "add a retry loop to the fetcher",
			Lane: contract.LanePatchFirst,
		},
	}
}

func sampleEvent(text string) Event {
	return Event{
		RefID: "run-1",
		Event: contract.AgentEvent{
			TS:   time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC),
			Kind: contract.AssistantMessageEvent{Text: text},
		},
	}
}

func sampleFinal() Final {
	return Final{
		RefID: "run-1",
		Receipt: contract.Receipt{
			Meta:     contract.RunMetadata{RunID: "run-1", WorkOrderID: "wo-1", ContractVersion: contract.Version},
			Backend:  contract.BackendIdentity{ID: "claude-code"},
			UsageRaw: json.RawMessage(`{"input_tokens":100,"output_tokens":40}`),
			Outcome:  contract.OutcomeComplete,
		},
	}
}

func TestRoundtripEachEnvelopeType(t *testing.T) {
	refID := "run-1"
	code := contract.CodeTimeout
	envelopes := []Envelope{
		sampleHello(),
		sampleRun(),
		sampleEvent("all done"),
		sampleFinal(),
		Fatal{RefID: &refID, Error: "ran out of budget", ErrorCode: &code},
		Fatal{Error: "broke before any run"},
	}
	for _, original := range envelopes {
		line, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode(%s): %v", original.EnvelopeType(), err)
		}
		if !strings.HasSuffix(line, "\n") {
			t.Errorf("%s line is not newline-terminated", original.EnvelopeType())
		}
		decoded, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%s): %v", original.EnvelopeType(), err)
		}
		if !reflect.DeepEqual(decoded, original) {
			t.Errorf("%s roundtrip mismatch:\n got %#v\nwant %#v", original.EnvelopeType(), decoded, original)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	first, err := Encode(sampleFinal())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(sampleFinal())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if first != second {
		t.Errorf("same envelope encoded differently:\n%s%s", first, second)
	}
}

func TestEncodeCarriesDiscriminator(t *testing.T) {
	line, err := Encode(sampleRun())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		t.Fatalf("re-parsing line: %v", err)
	}
	if string(fields["t"]) != `"run"` {
		t.Errorf("discriminator = %s, want \"run\"", fields["t"])
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace only", "   \t  "},
		{"invalid JSON", `{"t":"run",`},
		{"missing discriminator", `{"id":"run-1","work_order":{"task":"x"}}`},
		{"unknown discriminator", `{"t":"goodbye"}`},
		{"not an object", `"hello"`},
		{"run missing id", `{"t":"run","work_order":{"task":"x"}}`},
		{"run missing work_order", `{"t":"run","id":"run-1"}`},
		{"event missing ref_id", `{"t":"event","event":{"type":"warning","message":"x","ts":"2026-02-10T15:30:00Z"}}`},
		{"final missing receipt", `{"t":"final","ref_id":"run-1"}`},
		{"fatal missing error", `{"t":"fatal","ref_id":"run-1"}`},
		{"hello missing capabilities", `{"t":"hello","contract_version":"abp/v0.1","backend":{"id":"x"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.line); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tc.line)
			}
		})
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	line := `{"t":"run","id":"run-1","work_order":{"task":"demo"},"x_future_field":true}`
	envelope, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	run, ok := envelope.(Run)
	if !ok {
		t.Fatalf("decoded %T, want Run", envelope)
	}
	if run.ID != "run-1" || run.WorkOrder.Task != "demo" {
		t.Errorf("decoded run = %+v", run)
	}
}

func TestDecodeHelloModeDefaultsToMapped(t *testing.T) {
	line := `{"t":"hello","contract_version":"abp/v0.1","backend":{"id":"x"},"capabilities":{}}`
	envelope, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	hello := envelope.(Hello)
	if hello.Mode != contract.ModeMapped {
		t.Errorf("mode = %q, want mapped", hello.Mode)
	}
}

func TestRoundtripLargeUnicodePayload(t *testing.T) {
	// Well over 100KB of multi-byte content: emoji, CJK, and RTL text.
	fragment := "研究により示された結果 🚀 مرحبا بالعالم ✨ "
	text := strings.Repeat(fragment, 4000)
	if len(text) < 100*1024 {
		t.Fatalf("fixture too small: %d bytes", len(text))
	}

	original := sampleEvent(text)
	line, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	message := decoded.(Event).Event.Kind.(contract.AssistantMessageEvent)
	if message.Text != text {
		t.Error("large unicode payload did not survive the roundtrip")
	}
}

func TestWriteEnvelopesProducesOneLinePerEnvelope(t *testing.T) {
	var output strings.Builder
	envelopes := []Envelope{sampleHello(), sampleRun(), sampleFinal()}
	if err := WriteEnvelopes(&output, envelopes); err != nil {
		t.Fatalf("WriteEnvelopes: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(output.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("wrote %d lines, want 3", len(lines))
	}
}

func TestStreamDecoderHandlesBlanksAndUnterminatedTail(t *testing.T) {
	helloLine, err := Encode(sampleHello())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	runLine, err := Encode(sampleRun())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Blank lines interleaved; final line has no trailing newline.
	input := "\n" + helloLine + "   \n" + strings.TrimSuffix(runLine, "\n")

	decoder := NewStreamDecoder(strings.NewReader(input))
	first, err := decoder.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, ok := first.(Hello); !ok {
		t.Errorf("first envelope is %T, want Hello", first)
	}
	second, err := decoder.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if _, ok := second.(Run); !ok {
		t.Errorf("second envelope is %T, want Run", second)
	}
	if _, err := decoder.Next(); err != io.EOF {
		t.Errorf("third Next error = %v, want io.EOF", err)
	}
}
