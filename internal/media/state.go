package media

// PlaybackState is a playback state code. Values match the Android
// PlaybackState constants so clients can share one table.
type PlaybackState int

const (
	StateNone PlaybackState = iota
	StateStopped
	StatePaused
	StatePlaying
	StateFastForwarding
	StateRewinding
	StateBuffering
	StateError
	StateConnecting
	StateSkippingToPrevious
	StateSkippingToNext
	StateSkippingToQueueItem
)

// UnknownStateName is returned for codes outside the known range.
const UnknownStateName = "!Unknown State!"

var stateNames = [...]string{
	StateNone:                "STATE_NONE",
	StateStopped:             "STATE_STOPPED",
	StatePaused:              "STATE_PAUSED",
	StatePlaying:             "STATE_PLAYING",
	StateFastForwarding:      "STATE_FAST_FORWARDING",
	StateRewinding:           "STATE_REWINDING",
	StateBuffering:           "STATE_BUFFERING",
	StateError:               "STATE_ERROR",
	StateConnecting:          "STATE_CONNECTING",
	StateSkippingToPrevious:  "STATE_SKIPPING_TO_PREVIOUS",
	StateSkippingToNext:      "STATE_SKIPPING_TO_NEXT",
	StateSkippingToQueueItem: "STATE_SKIPPING_TO_QUEUE_ITEM",
}

// StateName maps a playback state code to its symbolic name.
func StateName(code int) string {
	if code < 0 || code >= len(stateNames) {
		return UnknownStateName
	}
	return stateNames[code]
}

// String returns the symbolic state name
func (s PlaybackState) String() string {
	return StateName(int(s))
}

// ParsePlaybackStatus converts an MPRIS PlaybackStatus value
func ParsePlaybackStatus(status string) PlaybackState {
	switch status {
	case "Playing":
		return StatePlaying
	case "Paused":
		return StatePaused
	case "Stopped":
		return StateStopped
	default:
		return StateNone
	}
}
