package models

// -----------------------------------------------------------------------------
// Snapshot (the synchronized view handed to render clients)
// -----------------------------------------------------------------------------

// MSnapshot holds markets in arrival order. Values are never mutated after
// they are published, so a snapshot can be read without locking.
type MSnapshot struct {
	Markets     []MMarket `json:"markets"`
	TotalMargin float64   `json:"totalMargin"`
	Notice      string    `json:"notice,omitempty"`

	// NoticeSeq increases with every notice; expiry timers carry the value
	// they were armed with.
	NoticeSeq uint64 `json:"-"`
}

// EmptySnapshot is the state before the first session load.
func EmptySnapshot() MSnapshot {
	return MSnapshot{Markets: []MMarket{}}
}

// IndexOf returns the position of asset, or -1.
func (s MSnapshot) IndexOf(asset string) int {
	for i := range s.Markets {
		if s.Markets[i].Asset == asset {
			return i
		}
	}
	return -1
}

// Market returns the market for asset.
func (s MSnapshot) Market(asset string) (MMarket, bool) {
	if i := s.IndexOf(asset); i >= 0 {
		return s.Markets[i], true
	}
	return MMarket{}, false
}

// Assets lists the tracked assets in arrival order.
func (s MSnapshot) Assets() []string {
	out := make([]string, 0, len(s.Markets))
	for _, m := range s.Markets {
		out = append(out, m.Asset)
	}
	return out
}
