// Package media discovers the media sessions published by other applications,
// lets a client select one, relays transport commands to it and streams its
// playback and metadata changes back to a single subscriber.
package media

// Session is a media session owned by another application. The platform
// creates and destroys sessions; the controller only holds references that
// stay valid until the platform reports the session destroyed.
type Session interface {
	// Token is the opaque identifier clients use to select the session.
	Token() string

	// PackageName identifies the application that owns the session.
	PackageName() string

	// PlaybackState queries the current playback state.
	PlaybackState() (PlaybackState, error)

	// Metadata queries the current track metadata. A nil result means the
	// session publishes none.
	Metadata() (*Metadata, error)

	// Title reads only the track title, without resolving cover art.
	Title() (string, error)

	Play() error
	Pause() error
	Stop() error
	Next() error
	Previous() error

	// RegisterCallback starts delivering change notifications for this
	// session to cb. The returned function removes the registration and is
	// safe to call more than once.
	RegisterCallback(cb Callback) (unregister func(), err error)
}

// SessionEventKind identifies a per-session notification.
type SessionEventKind int

const (
	PlaybackStateChanged SessionEventKind = iota
	MetadataChanged
	SessionDestroyed
)

// String returns the event kind name
func (k SessionEventKind) String() string {
	switch k {
	case PlaybackStateChanged:
		return "PlaybackStateChanged"
	case MetadataChanged:
		return "MetadataChanged"
	case SessionDestroyed:
		return "SessionDestroyed"
	default:
		return "Unknown"
	}
}

// SessionEvent is a notification pushed by the platform for one session.
type SessionEvent struct {
	Kind    SessionEventKind
	Session Session
}

// Callback receives per-session notifications. Platforms may invoke it from
// any goroutine but never while holding a lock the controller could wait on.
type Callback func(SessionEvent)

// Platform is the operating-system side of session discovery.
type Platform interface {
	// ActiveSessions lists the sessions currently published, in platform order.
	ActiveSessions() ([]Session, error)

	// WatchActiveSessions calls fn with the new session list every time the
	// set of published sessions changes. The returned function stops watching.
	WatchActiveSessions(fn func([]Session)) (stop func(), err error)

	// Close releases platform resources.
	Close() error
}

// Entitlement reports whether the user has granted this process access to
// other applications' media sessions.
type Entitlement interface {
	Enabled() bool
}

// EntitlementFunc is a function adapter for Entitlement
type EntitlementFunc func() bool

func (f EntitlementFunc) Enabled() bool {
	return f()
}

// Command represents a transport command forwarded to the selected session
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdStop
	CmdNext
	CmdPrevious
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	default:
		return "Unknown"
	}
}

// NoOpPlatform publishes no sessions.
// Used when the session bus is not available.
type NoOpPlatform struct{}

// NewNoOpPlatform creates a new no-op platform
func NewNoOpPlatform() *NoOpPlatform {
	return &NoOpPlatform{}
}

func (p *NoOpPlatform) ActiveSessions() ([]Session, error) {
	return nil, nil
}

func (p *NoOpPlatform) WatchActiveSessions(fn func([]Session)) (func(), error) {
	return func() {}, nil
}

func (p *NoOpPlatform) Close() error {
	return nil
}
