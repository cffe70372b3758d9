// Package history recovers aggregates from the archive database at startup
// and on a periodic refresh, so day totals, longer-horizon rain figures and
// the hour gust survive a process restart instead of restarting from zero.
package history

import (
	"context"
	"time"

	"skyfeed/internal/types"
)

// Store fetches seed aggregates from persisted archive records.
type Store interface {
	// Seeds returns the aggregates accumulated before now: day sums since
	// the current day boundary, wind run, yesterday/month/year rain and the
	// past hour's gust. Missing archive data yields zero-valued seeds, not
	// an error.
	Seeds(ctx context.Context, now time.Time) (types.Seeds, error)

	// LatestPacket returns the most recent archive record as a
	// canonical-unit packet, for priming the packet cache at startup.
	// Returns ok=false when the archive is empty.
	LatestPacket(ctx context.Context) (types.Packet, bool, error)
}
