package media

import (
	"sync"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("media")

// Options configure a Controller
type Options struct {
	// SnapshotOnChange sends a full session snapshot instead of the
	// notifyChanged flag when the active session list changes.
	SnapshotOnChange bool

	// MaxArtSize bounds encoded cover art (default: DefaultMaxArtSize)
	MaxArtSize int
}

// state is the controller's mutable state. Every access holds Controller.mu.
type state struct {
	attached bool

	active     []Session
	selected   Session
	unregister func()
	generation uint64

	sink      EventSink
	sinkID    uint64
	stopWatch func()
}

// Controller owns the session registry, the change notifier and the command
// dispatcher of one attached client. All three share a single lock so that
// re-selection is atomic with respect to platform notifications.
type Controller struct {
	mu sync.Mutex
	st state

	platform    Platform
	entitlement Entitlement
	registry    registry
	notifier    notifier
	dispatcher  dispatcher
}

// NewController creates an unattached controller
func NewController(platform Platform, entitlement Entitlement, opts Options) *Controller {
	return &Controller{
		platform:    platform,
		entitlement: entitlement,
		registry:    registry{platform: platform, entitlement: entitlement},
		notifier: notifier{
			snapshotOnChange: opts.SnapshotOnChange,
			extractor:        InfoExtractor{MaxArtSize: opts.MaxArtSize},
		},
	}
}

// Attach makes the controller usable. Attaching twice is a no-op.
func (c *Controller) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.attached {
		return
	}
	// Counters survive so that cancels and callbacks from an earlier
	// attachment never match the new one.
	c.st = state{attached: true, generation: c.st.generation, sinkID: c.st.sinkID}
	log.Infof("Controller attached")
}

// Detach tears down the selection, the session watcher and the subscriber.
// No selection or subscriber survives into the next Attach.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		return
	}
	c.registry.clear(&c.st)
	c.stopWatchLocked()
	c.st = state{generation: c.st.generation, sinkID: c.st.sinkID}
	log.Infof("Controller detached")
}

// Attached reports whether the controller is attached
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.attached
}

// ListenerEnabled reports whether the listener entitlement is granted
func (c *Controller) ListenerEnabled() bool {
	return c.entitlement.Enabled()
}

// Subscribe makes sink the only event subscriber, replacing any previous one.
// The returned function unsubscribes sink if it is still the current one.
func (c *Controller) Subscribe(sink EventSink) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		log.Warningf("Subscribe on detached controller ignored")
		return func() {}
	}

	if c.st.sink != nil {
		log.Infof("Replacing event subscriber")
	}
	c.st.sinkID++
	id := c.st.sinkID
	c.st.sink = sink

	if c.entitlement.Enabled() {
		c.startWatchLocked()
	} else {
		log.Warningf("Listener permission not granted, session changes will not be watched")
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.st.sinkID != id || c.st.sink == nil {
			return
		}
		c.st.sink = nil
		c.stopWatchLocked()
		log.Infof("Event subscriber removed")
	}
}

// Refresh re-reads the active session list from the platform.
func (c *Controller) Refresh() ([]Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		return nil, errNotAttached
	}
	return c.refreshLocked()
}

// PublishSessions refreshes the active session list and sends a snapshot of
// it to the subscriber.
func (c *Controller) PublishSessions() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		return errNotAttached
	}
	sessions, err := c.refreshLocked()
	if err != nil {
		return err
	}
	c.notifier.sessions(&c.st, sessions)
	return nil
}

func (c *Controller) refreshLocked() ([]Session, error) {
	sessions, err := c.registry.refresh(&c.st)
	if err != nil {
		return nil, err
	}
	log.Debugf("Active sessions refreshed: %d", len(sessions))

	if c.st.sink != nil && c.st.stopWatch == nil {
		c.startWatchLocked()
	}
	return sessions, nil
}

// Select makes the session with the given token the current one and sends
// its playback state and metadata to the subscriber before returning. On
// failure the previous selection is not restored.
func (c *Controller) Select(token string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		return nil, errNotAttached
	}

	s, err := c.registry.selectSession(&c.st, token, c.sessionCallback)
	if err != nil {
		log.Warningf("Select %q failed: %v", token, err)
		return nil, err
	}
	log.Infof("Selected session %s (%s)", s.Token(), s.PackageName())

	c.notifier.current(&c.st, s)
	return s, nil
}

// ClearSelection drops the current selection, if any.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.selected != nil {
		log.Infof("Cleared selection of %s", c.st.selected.Token())
	}
	c.registry.clear(&c.st)
}

// Selected returns the current selection, or nil
func (c *Controller) Selected() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.selected
}

// ByToken looks a session up in the last refreshed list without changing
// the selection.
func (c *Controller) ByToken(token string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.registry.byToken(&c.st, token)
	return s, s != nil
}

// Dispatch forwards cmd to the selected session.
func (c *Controller) Dispatch(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached {
		return errNotAttached
	}
	return c.dispatcher.dispatch(&c.st, cmd)
}

func (c *Controller) Play() error     { return c.Dispatch(CmdPlay) }
func (c *Controller) Pause() error    { return c.Dispatch(CmdPause) }
func (c *Controller) Stop() error     { return c.Dispatch(CmdStop) }
func (c *Controller) Next() error     { return c.Dispatch(CmdNext) }
func (c *Controller) Previous() error { return c.Dispatch(CmdPrevious) }

func (c *Controller) startWatchLocked() {
	if c.st.stopWatch != nil {
		return
	}
	stop, err := c.platform.WatchActiveSessions(c.onSessionsChanged)
	if err != nil {
		log.Errorf("Failed to watch active sessions: %v", err)
		return
	}
	c.st.stopWatch = stop
}

func (c *Controller) stopWatchLocked() {
	if c.st.stopWatch != nil {
		c.st.stopWatch()
		c.st.stopWatch = nil
	}
}

// onSessionsChanged runs in platform callback context.
func (c *Controller) onSessionsChanged(sessions []Session) {
	defer recoverCallback("active sessions changed")

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.attached || c.st.stopWatch == nil {
		log.Debugf("Session list change after watcher teardown ignored")
		return
	}
	c.st.active = sessions
	log.Debugf("Active sessions changed: %d", len(sessions))
	c.notifier.sessionsChanged(&c.st, sessions)
}

// sessionCallback returns the callback registered for the selection made at
// generation gen. Notifications that arrive after that selection ended are
// dropped.
func (c *Controller) sessionCallback(gen uint64) Callback {
	return func(ev SessionEvent) {
		defer recoverCallback(ev.Kind.String())

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.st.selected == nil || c.st.generation != gen {
			log.Debugf("Ignoring %s for a session that is no longer selected", ev.Kind)
			return
		}

		s := c.st.selected
		switch ev.Kind {
		case PlaybackStateChanged:
			c.notifier.playbackState(&c.st, s)
		case MetadataChanged:
			c.notifier.mediaInfo(&c.st, s)
		case SessionDestroyed:
			log.Infof("Media session %s has been released", s.Token())
			c.registry.clear(&c.st)
		default:
			log.Warningf("Unknown session event kind %d", ev.Kind)
		}
	}
}

func recoverCallback(what string) {
	if r := recover(); r != nil {
		log.Errorf("Recovered from panic in %s callback: %v", what, r)
	}
}
