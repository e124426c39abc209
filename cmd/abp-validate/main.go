// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// abp-validate checks a session transcript for protocol violations. It
// reads NDJSON from a file (".zst" transcripts are transparently
// decompressed) or from stdin, decodes every line, validates each
// envelope's fields, and checks the overall sequence against the
// expected hello → run → event* → terminal flow.
//
// Findings are printed one per line. The exit code is 0 for a clean
// transcript (warnings allowed), 1 when any decode failure, field
// error, or sequence error was found.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/abp/lib/process"
	"github.com/bureau-foundation/abp/lib/protocol"
	"github.com/bureau-foundation/abp/lib/transcript"
	"github.com/bureau-foundation/abp/lib/version"
)

func main() {
	clean, err := run()
	if err != nil {
		process.Fatal(err)
	}
	if !clean {
		os.Exit(1)
	}
}

func run() (clean bool, err error) {
	flagSet := pflag.NewFlagSet("abp-validate", pflag.ContinueOnError)
	quiet := flagSet.Bool("quiet", false, "suppress warnings, print only errors")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: abp-validate [flags] [transcript-file]\n\n")
		fmt.Fprintf(os.Stderr, "Reads from stdin when no file is given.\n\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return true, nil
		}
		return false, err
	}
	if *showVersion {
		fmt.Printf("abp-validate %s\n", version.Info())
		return true, nil
	}

	var reader io.Reader = os.Stdin
	if args := flagSet.Args(); len(args) > 0 {
		file, err := transcript.Open(args[0])
		if err != nil {
			return false, err
		}
		defer file.Close()
		reader = file
	}

	return validate(reader, os.Stdout, *quiet)
}

// validate streams the input through the chunk parser, reporting every
// finding to out. Decode failures do not stop the scan: the parser
// isolates bad lines, so one corrupt line still lets the rest of the
// transcript be checked.
func validate(reader io.Reader, out io.Writer, quiet bool) (bool, error) {
	parser := protocol.NewStreamParser()
	var envelopes []protocol.Envelope
	errorCount := 0
	line := 0

	report := func(results []protocol.Result) {
		for _, result := range results {
			line++
			if result.Err != nil {
				errorCount++
				fmt.Fprintf(out, "line %d: %v\n", line, result.Err)
				continue
			}
			envelopes = append(envelopes, result.Envelope)
			checked := protocol.Validate(result.Envelope)
			for _, fieldErr := range checked.Errors {
				errorCount++
				fmt.Fprintf(out, "line %d (%s): %v\n", line, result.Envelope.EnvelopeType(), fieldErr)
			}
			if !quiet {
				for _, warning := range checked.Warnings {
					fmt.Fprintf(out, "line %d (%s): warning: %s\n",
						line, result.Envelope.EnvelopeType(), formatWarning(warning))
				}
			}
		}
	}

	buffer := make([]byte, 32*1024)
	for {
		n, readErr := reader.Read(buffer)
		if n > 0 {
			report(parser.Push(buffer[:n]))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return false, fmt.Errorf("reading input: %w", readErr)
		}
	}
	report(parser.Finish())

	for _, seqErr := range protocol.ValidateSequence(envelopes) {
		errorCount++
		fmt.Fprintf(out, "sequence: %v\n", seqErr)
	}

	summary := transcript.Summarize(envelopes)
	fmt.Fprintf(out, "%d envelopes (%d events, %d tool calls, %d terminals), %d errors\n",
		summary.Envelopes, summary.Events, summary.ToolCalls, summary.Terminals, errorCount)

	return errorCount == 0, nil
}

// formatWarning renders a warning with the fields relevant to its kind:
// the field name for missing-field warnings, the observed and
// recommended sizes for oversized payloads.
func formatWarning(warning protocol.ValidationWarning) string {
	switch warning.Kind {
	case protocol.WarnMissingOptionalField:
		return fmt.Sprintf("%s %s", warning.Kind, warning.Field)
	case protocol.WarnLargePayload:
		return fmt.Sprintf("%s: %d bytes (recommended max %d)",
			warning.Kind, warning.Size, warning.MaxRecommended)
	default:
		return string(warning.Kind)
	}
}
