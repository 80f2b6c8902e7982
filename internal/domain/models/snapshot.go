package models

import "time"

// SnapshotMessageType is the only message type carried by the publisher transports.
const SnapshotMessageType = "update"

// AssetSnapshot is the serialized view of one instrument. ATR holds the last
// closed-bar value per tracked timeframe when the feed supplies it.
type AssetSnapshot struct {
	Name    string                `json:"name"`
	Timing  Timing                `json:"timing"`
	ATR     map[TimeFrame]float64 `json:"atr,omitempty"`
	Signals []Signal              `json:"signals"`
}

// Snapshot is an immutable copy of the aggregate state taken at the end of a cycle.
type Snapshot struct {
	Type   string          `json:"type"`
	Seq    uint64          `json:"seq"`
	At     time.Time       `json:"at"`
	Assets []AssetSnapshot `json:"assets"`
}

// Asset returns the asset with the given name.
func (s *Snapshot) Asset(name string) (AssetSnapshot, bool) {
	if s == nil {
		return AssetSnapshot{}, false
	}
	for _, a := range s.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return AssetSnapshot{}, false
}

// ActiveSignals counts signals across all assets.
func (s *Snapshot) ActiveSignals() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, a := range s.Assets {
		n += len(a.Signals)
	}
	return n
}
