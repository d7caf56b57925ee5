package domain

import "time"

// NetworkKind is the coarse connectivity class.
type NetworkKind string

const (
	NetworkWiFi     NetworkKind = "wifi"
	NetworkCellular NetworkKind = "cellular"
	NetworkWired    NetworkKind = "wired"
	NetworkNone     NetworkKind = "none"
)

// CellularGeneration identifies the cellular tier when kind is cellular.
type CellularGeneration string

const (
	Gen5G      CellularGeneration = "5g"
	Gen4G      CellularGeneration = "4g"
	Gen3G      CellularGeneration = "3g"
	Gen2G      CellularGeneration = "2g"
	GenUnknown CellularGeneration = ""
)

// NetworkCondition is a snapshot of connectivity, recomputed on every
// connectivity-change event.
type NetworkCondition struct {
	Kind        NetworkKind        `json:"kind"`
	IsConnected bool               `json:"is_connected"`
	IsReachable bool               `json:"is_reachable"`
	Generation  CellularGeneration `json:"generation,omitempty"`
	IsExpensive bool               `json:"is_expensive,omitempty"`
	ObservedAt  time.Time          `json:"observed_at"`
}

// ChangedFrom reports whether the condition differs from a previous one in a
// field that affects strategy selection. Duplicate or no-op connectivity
// events compare equal and must not cause a strategy re-derivation.
func (c NetworkCondition) ChangedFrom(prev NetworkCondition) bool {
	return c.Kind != prev.Kind ||
		c.IsConnected != prev.IsConnected ||
		c.Generation != prev.Generation ||
		c.IsExpensive != prev.IsExpensive
}

// Label is a short human-readable description, attached to results and
// notifications.
func (c NetworkCondition) Label() string {
	if !c.IsConnected {
		return "offline"
	}
	if c.Kind == NetworkCellular && c.Generation != GenUnknown {
		return string(c.Kind) + "_" + string(c.Generation)
	}
	return string(c.Kind)
}
