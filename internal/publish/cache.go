package publish

import (
	"time"

	"skyfeed/internal/types"
)

// PacketCache smooths over stations that emit partial packets: each field's
// most recent value is retained for up to maxAge, so the formatter always
// sees a full packet shape even when individual sensors report on their own
// cadence. A field not seen within maxAge reads as nil again; staleness is
// bounded, never silent.
type PacketCache struct {
	maxAge time.Duration
	values map[string]cachedValue
}

type cachedValue struct {
	v  float64
	ts int64
}

// NewPacketCache creates a cache with the given maximum field age.
func NewPacketCache(maxAge time.Duration) *PacketCache {
	return &PacketCache{
		maxAge: maxAge,
		values: make(map[string]cachedValue),
	}
}

// Update folds a canonical-unit packet into the cache. Nil values do not
// displace cached ones.
func (c *PacketCache) Update(pkt types.Packet) {
	for name, v := range pkt.Fields {
		if v == nil {
			continue
		}
		c.values[name] = cachedValue{v: *v, ts: pkt.Time}
	}
}

// Packet assembles a canonical-unit packet as of ts from the cached values,
// dropping anything older than maxAge.
func (c *PacketCache) Packet(ts int64) types.Packet {
	pkt := types.Packet{
		Time:   ts,
		Units:  types.UnitsCanonical,
		Fields: make(map[string]*float64, len(c.values)),
	}
	limit := int64(c.maxAge / time.Second)
	for name, cv := range c.values {
		if ts-cv.ts > limit {
			continue
		}
		v := cv.v
		pkt.Fields[name] = &v
	}
	return pkt
}
