package media

import "encoding/json"

// EventKind names an outbound event variant on the wire.
type EventKind string

const (
	EventSessions      EventKind = "sessions"
	EventNotifyChanged EventKind = "notifyChanged"
	EventPlaybackState EventKind = "playbackState"
	EventMediaInfo     EventKind = "mediaInfo"
)

// Event is one outbound payload. The set of implementations is closed:
// SessionsEvent, ChangedEvent, PlaybackStateEvent and MediaInfoEvent.
type Event interface {
	Kind() EventKind
	isEvent()
}

// EventSink receives outbound events. Send is called with the controller's
// lock held and must not block.
type EventSink interface {
	Send(ev Event)
}

// EventSinkFunc is a function adapter for EventSink
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) Send(ev Event) {
	f(ev)
}

// SessionList holds parallel per-session columns of a snapshot.
type SessionList struct {
	Tokens    []string `json:"tokens"`
	Packages  []string `json:"packages"`
	States    []string `json:"states"`
	Titles    []string `json:"titles"`
	AlbumArts []string `json:"albumArts"`
}

// SessionsEvent is a full snapshot of the active session list.
type SessionsEvent struct {
	Sessions []SessionList `json:"sessions"`
}

// ChangedEvent flags that the active session list changed.
type ChangedEvent struct {
	NotifyChanged bool `json:"notifyChanged"`
}

// PlaybackStateEvent reports the selected session's playback state.
type PlaybackStateEvent struct {
	PlaybackState string `json:"PlaybackState"`
	Package       string `json:"Package"`
	Title         string `json:"Title,omitempty"`
}

// MediaInfoEvent reports the selected session's metadata as a sparse map.
type MediaInfoEvent struct {
	Info map[string]string
}

func (SessionsEvent) Kind() EventKind      { return EventSessions }
func (ChangedEvent) Kind() EventKind       { return EventNotifyChanged }
func (PlaybackStateEvent) Kind() EventKind { return EventPlaybackState }
func (MediaInfoEvent) Kind() EventKind     { return EventMediaInfo }

func (SessionsEvent) isEvent()      {}
func (ChangedEvent) isEvent()       {}
func (PlaybackStateEvent) isEvent() {}
func (MediaInfoEvent) isEvent()     {}

// MarshalJSON encodes the info map itself, without a wrapper object.
func (e MediaInfoEvent) MarshalJSON() ([]byte, error) {
	if e.Info == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Info)
}

// Snapshot placeholders for sessions that publish no title, state or art.
const (
	unknownTitle = "Unknown Title"
	noArt        = ""
)
