// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/abp/lib/retry"
)

// SpawnWithRetry spawns a sidecar, retrying transient failures with the
// given policy. On success the retry metadata describes the attempts it
// took; callers typically fold it into the run's receipt via
// [retry.Metadata.ToReceiptMetadata].
func SpawnWithRetry(ctx context.Context, spec SidecarSpec, config retry.Config, logger *slog.Logger) (*Client, retry.Metadata, error) {
	outcome, err := retry.Do(ctx, config, func(ctx context.Context) (*Client, error) {
		return Spawn(ctx, spec, logger)
	}, IsRetryable)
	if err != nil {
		return nil, retry.Metadata{}, err
	}
	return outcome.Value, outcome.Metadata, nil
}
