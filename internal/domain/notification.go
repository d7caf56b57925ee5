package domain

import "time"

// NotificationType is the variant tag of a SearchNotification.
type NotificationType string

const (
	NotificationStarted          NotificationType = "started"
	NotificationProgress         NotificationType = "progress"
	NotificationCompleted        NotificationType = "completed"
	NotificationFailed           NotificationType = "failed"
	NotificationInvalidated      NotificationType = "invalidated"
	NotificationBandwidthLimited NotificationType = "bandwidth_limited"
)

// SuggestedAction tells the UI layer how to react to a bandwidth refusal.
type SuggestedAction string

const (
	ActionShowCached SuggestedAction = "show_cached"
	ActionWait       SuggestedAction = "wait"
)

// BandwidthInfo describes the admission-control state that caused a
// bandwidth_limited notification.
type BandwidthInfo struct {
	StrategyName string `json:"strategy_name"`
	NetworkLabel string `json:"network_label"`
	Reason       string `json:"reason"`
}

// SearchNotification is one event on the search lifecycle stream. A tagged
// union: Type decides which optional fields are populated. Ephemeral, never
// persisted.
type SearchNotification struct {
	Type      NotificationType `json:"type"`
	SearchID  string           `json:"search_id"`
	Timestamp time.Time        `json:"timestamp"`
	Region    SearchRegion     `json:"region"`

	// progress
	ProgressPct int `json:"progress_pct,omitempty"`

	// completed
	ResultCount int          `json:"result_count,omitempty"`
	Source      ResultSource `json:"source,omitempty"`
	Confidence  int          `json:"confidence,omitempty"`

	// failed
	ErrorMessage string `json:"error_message,omitempty"`

	// invalidated
	Reason string `json:"reason,omitempty"`

	// bandwidth_limited
	Bandwidth       *BandwidthInfo  `json:"bandwidth,omitempty"`
	SuggestedAction SuggestedAction `json:"suggested_action,omitempty"`
}

// Terminal reports whether the notification ends a search lifecycle.
func (n SearchNotification) Terminal() bool {
	return n.Type == NotificationCompleted || n.Type == NotificationFailed
}
