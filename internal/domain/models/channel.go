package models

// Channel holds the fitted trend channel for a price series: a smoothed
// center line plus symmetric bands, aligned index-for-index with the input.
type Channel struct {
	Center []float64
	Upper  []float64
	Lower  []float64

	// Fit parameters actually used (degree may have been clamped).
	Degree int
	KStd   float64
}

// Len returns the channel length.
func (c *Channel) Len() int { return len(c.Center) }

// Snapshot returns the channel values at index i.
func (c *Channel) Snapshot(i int) ChannelSnapshot {
	return ChannelSnapshot{
		Center: c.Center[i],
		Upper:  c.Upper[i],
		Lower:  c.Lower[i],
	}
}

// Ordered reports whether upper >= center >= lower holds at every index.
func (c *Channel) Ordered() bool {
	for i := range c.Center {
		if c.Upper[i] < c.Center[i] || c.Center[i] < c.Lower[i] {
			return false
		}
	}
	return true
}

// ChannelSnapshot is the channel state at a single observation.
type ChannelSnapshot struct {
	Center float64 `json:"center"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}
