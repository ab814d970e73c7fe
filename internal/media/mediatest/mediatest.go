// Package mediatest provides in-memory media platforms and sessions for tests.
package mediatest

import (
	"sync"

	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

// Session is a scripted media.Session that records the commands it receives.
type Session struct {
	mu sync.Mutex

	token string
	pkg   string

	state    media.PlaybackState
	stateErr error
	meta     *media.Metadata
	metaErr  error
	cmdErr   error
	regErr   error

	calls           []string
	callbacks       map[int]media.Callback
	history         []media.Callback
	metaReads       int
	nextID          int
	registrations   int
	unregistrations int
}

// NewSession creates a stopped session without metadata.
func NewSession(token, pkg string) *Session {
	return &Session{
		token:     token,
		pkg:       pkg,
		state:     media.StateStopped,
		callbacks: make(map[int]media.Callback),
	}
}

func (s *Session) Token() string       { return s.token }
func (s *Session) PackageName() string { return s.pkg }

func (s *Session) PlaybackState() (media.PlaybackState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.stateErr
}

func (s *Session) Metadata() (*media.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaReads++
	return s.meta, s.metaErr
}

// MetadataReads counts full metadata reads, which load cover art on real
// platforms.
func (s *Session) MetadataReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metaReads
}

// Title returns the scripted title.
func (s *Session) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metaErr != nil || s.meta == nil {
		return "", s.metaErr
	}
	return s.meta.Title, nil
}

// SetState changes the reported playback state.
func (s *Session) SetState(st media.PlaybackState) *Session {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return s
}

// SetMetadata changes the reported metadata.
func (s *Session) SetMetadata(md *media.Metadata) *Session {
	s.mu.Lock()
	s.meta = md
	s.mu.Unlock()
	return s
}

// FailState makes PlaybackState return err.
func (s *Session) FailState(err error) *Session {
	s.mu.Lock()
	s.stateErr = err
	s.mu.Unlock()
	return s
}

// FailMetadata makes Metadata return err.
func (s *Session) FailMetadata(err error) *Session {
	s.mu.Lock()
	s.metaErr = err
	s.mu.Unlock()
	return s
}

// FailCommands makes every transport command return err.
func (s *Session) FailCommands(err error) *Session {
	s.mu.Lock()
	s.cmdErr = err
	s.mu.Unlock()
	return s
}

// FailRegister makes RegisterCallback return err.
func (s *Session) FailRegister(err error) *Session {
	s.mu.Lock()
	s.regErr = err
	s.mu.Unlock()
	return s
}

func (s *Session) command(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	return s.cmdErr
}

func (s *Session) Play() error     { return s.command("Play") }
func (s *Session) Pause() error    { return s.command("Pause") }
func (s *Session) Stop() error     { return s.command("Stop") }
func (s *Session) Next() error     { return s.command("Next") }
func (s *Session) Previous() error { return s.command("Previous") }

// Calls returns the transport commands received so far, in order.
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Session) RegisterCallback(cb media.Callback) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.regErr != nil {
		return nil, s.regErr
	}
	s.nextID++
	id := s.nextID
	s.callbacks[id] = cb
	s.history = append(s.history, cb)
	s.registrations++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.callbacks, id)
			s.unregistrations++
			s.mu.Unlock()
		})
	}, nil
}

// Registered is the number of live callback registrations.
func (s *Session) Registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.callbacks)
}

// Registrations and Unregistrations count calls over the session's lifetime.
func (s *Session) Registrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrations
}

func (s *Session) Unregistrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unregistrations
}

// Callback returns the i-th callback ever registered, live or not, so tests
// can deliver notifications that raced with an unregister.
func (s *Session) Callback(i int) media.Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[i]
}

// Fire delivers an event of the given kind to every live callback.
func (s *Session) Fire(kind media.SessionEventKind) {
	s.mu.Lock()
	cbs := make([]media.Callback, 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(media.SessionEvent{Kind: kind, Session: s})
	}
}

// Platform is an in-memory media.Platform.
type Platform struct {
	mu       sync.Mutex
	sessions []media.Session
	listErr  error
	watchErr error
	watchers map[int]func([]media.Session)
	nextID   int
	closed   bool
}

// NewPlatform creates a platform publishing sessions.
func NewPlatform(sessions ...*Session) *Platform {
	p := &Platform{watchers: make(map[int]func([]media.Session))}
	p.SetSessions(sessions...)
	return p
}

// SetSessions replaces the published list without notifying watchers.
func (p *Platform) SetSessions(sessions ...*Session) {
	list := make([]media.Session, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, s)
	}
	p.mu.Lock()
	p.sessions = list
	p.mu.Unlock()
}

// Publish replaces the published list and notifies every watcher.
func (p *Platform) Publish(sessions ...*Session) {
	p.SetSessions(sessions...)

	p.mu.Lock()
	list := append([]media.Session(nil), p.sessions...)
	fns := make([]func([]media.Session), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(list)
	}
}

// FailList makes ActiveSessions return err.
func (p *Platform) FailList(err error) {
	p.mu.Lock()
	p.listErr = err
	p.mu.Unlock()
}

// FailWatch makes WatchActiveSessions return err.
func (p *Platform) FailWatch(err error) {
	p.mu.Lock()
	p.watchErr = err
	p.mu.Unlock()
}

func (p *Platform) ActiveSessions() ([]media.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]media.Session(nil), p.sessions...), nil
}

func (p *Platform) WatchActiveSessions(fn func([]media.Session)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return nil, p.watchErr
	}
	p.nextID++
	id := p.nextID
	p.watchers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}, nil
}

// Watching is the number of live watchers.
func (p *Platform) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *Platform) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (p *Platform) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Recorder is a media.EventSink that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []media.Event
}

func (r *Recorder) Send(ev media.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns the received events in order.
func (r *Recorder) Events() []media.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.Event(nil), r.events...)
}

// Kinds returns the kinds of the received events in order.
func (r *Recorder) Kinds() []media.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]media.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

// Reset forgets the received events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
