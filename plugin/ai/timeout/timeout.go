// Package timeout defines centralized timeout constants for assistant operations.
package timeout

import (
	"context"
	"time"

	"github.com/hrygo/familycal/internal/util"
)

const (
	// ExtractionTimeout bounds a single extraction call when the caller sets no deadline.
	ExtractionTimeout = 30 * time.Second

	// BatchExtractionTimeout bounds a whole batch extraction.
	BatchExtractionTimeout = 2 * time.Minute

	// StoreQueryTimeout bounds event searches issued during resolution.
	StoreQueryTimeout = 5 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to at most MaxTruncateLength runes for logging.
func Truncate(s string) string {
	return util.TruncateRunes(s, MaxTruncateLength)
}

// WithDefault returns ctx unchanged when it already carries a deadline,
// otherwise it derives a context bounded by d.
func WithDefault(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
