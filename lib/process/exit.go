// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. The
// abp binaries call it in main() for errors bubbling out of run(),
// where the structured logger may not be initialized yet and, for the
// sidecar, stdout belongs to the protocol stream.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
