// SPDX-License-Identifier: LGPL-3.0-or-later

package tspnet

import (
	"context"

	"github.com/google/uuid"
)

// withRequestID attaches a fresh correlation id to ctx under the same
// "request_id" key internal/logger.StructuredLogger reads back out of a
// context, so every log line emitted while handling one Send call or one
// inbound frame carries a single id an operator can grep across the whole
// exchange.
func withRequestID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, "request_id", id), id
}
