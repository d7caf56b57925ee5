package domain

// DataUsageMode is the user's data budget preference.
type DataUsageMode string

const (
	DataUsageUnrestricted DataUsageMode = "unrestricted"
	DataUsageOptimized    DataUsageMode = "optimized"
	DataUsageMinimal      DataUsageMode = "minimal"
)

// IsValid reports whether the mode is one of the known values.
func (m DataUsageMode) IsValid() bool {
	switch m {
	case DataUsageUnrestricted, DataUsageOptimized, DataUsageMinimal:
		return true
	}
	return false
}

// Preferences holds the user-tunable search behavior knobs.
type Preferences struct {
	AutoSearchEnabled bool          `json:"auto_search_enabled"`
	DataUsageMode     DataUsageMode `json:"data_usage_mode"`
}

// DefaultPreferences returns the out-of-the-box preference set.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoSearchEnabled: true,
		DataUsageMode:     DataUsageOptimized,
	}
}
