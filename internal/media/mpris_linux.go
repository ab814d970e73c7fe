//go:build linux

package media

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/shirou/gopsutil/v3/process"
)

const defaultCallTimeout = 2 * time.Second

// MPRISPlatform discovers MPRIS players on the session bus
type MPRISPlatform struct {
	conn        *dbus.Conn
	art         *ArtLoader
	callTimeout time.Duration

	signals chan *dbus.Signal
	done    chan struct{}

	mu        sync.Mutex
	nextID    uint64
	watchers  map[uint64]func([]Session)
	callbacks map[uint64]*registration
	packages  map[string]string // unique owner -> process name
}

// registration is one RegisterCallback on an MPRIS player
type registration struct {
	session *mprisSession
	cb      Callback
}

// NewPlatform connects to the session bus
func NewPlatform(opts PlatformOptions) (Platform, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace(mprisNamespace),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to watch bus names: %w", err)
	}

	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}

	p := &MPRISPlatform{
		conn:        conn,
		art:         opts.Art,
		callTimeout: opts.CallTimeout,
		signals:     make(chan *dbus.Signal, 64),
		done:        make(chan struct{}),
		watchers:    make(map[uint64]func([]Session)),
		callbacks:   make(map[uint64]*registration),
		packages:    make(map[string]string),
	}
	conn.Signal(p.signals)
	go p.signalLoop()

	log.Infof("Connected to session bus")
	return p, nil
}

func (p *MPRISPlatform) signalLoop() {
	defer close(p.done)
	for sig := range p.signals {
		p.handleSignal(sig)
	}
}

func (p *MPRISPlatform) handleSignal(sig *dbus.Signal) {
	defer recoverCallback(sig.Name)

	switch sig.Name {
	case dbusNameOwnerChanged:
		if len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		if !strings.HasPrefix(name, mprisPrefix) {
			return
		}
		log.Debugf("Owner of %s changed: %q -> %q", name, oldOwner, newOwner)

		if oldOwner != "" {
			p.forget(oldOwner)
			p.deliver(func(r *registration) bool { return r.session.busName == name }, SessionDestroyed)
		}
		p.notifyWatchers()

	case dbusPropertiesChanged:
		if sig.Path != mprisObjectPath {
			return
		}
		pc, ok := parsePropertiesChanged(sig.Body)
		if !ok {
			log.Debugf("Malformed PropertiesChanged from %s", sig.Sender)
			return
		}
		for _, kind := range sessionEventsFor(pc) {
			p.deliver(func(r *registration) bool { return r.session.owner == sig.Sender }, kind)
		}
	}
}

// deliver invokes matching callbacks outside p.mu.
func (p *MPRISPlatform) deliver(match func(*registration) bool, kind SessionEventKind) {
	p.mu.Lock()
	var targets []*registration
	for _, r := range p.callbacks {
		if match(r) {
			targets = append(targets, r)
		}
	}
	p.mu.Unlock()

	for _, r := range targets {
		r.cb(SessionEvent{Kind: kind, Session: r.session})
	}
}

func (p *MPRISPlatform) notifyWatchers() {
	p.mu.Lock()
	fns := make([]func([]Session), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	if len(fns) == 0 {
		return
	}

	sessions, err := p.ActiveSessions()
	if err != nil {
		log.Warningf("Failed to list sessions after owner change: %v", err)
		return
	}
	for _, fn := range fns {
		fn(sessions)
	}
}

// ActiveSessions lists the MPRIS players currently on the bus, sorted by
// bus name.
func (p *MPRISPlatform) ActiveSessions() ([]Session, error) {
	ctx, cancel := p.context()
	defer cancel()

	var names []string
	if err := p.conn.BusObject().CallWithContext(ctx, dbusInterface+".ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}
	sort.Strings(names)

	sessions := make([]Session, 0)
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}

		var owner string
		if err := p.conn.BusObject().CallWithContext(ctx, dbusInterface+".GetNameOwner", 0, name).Store(&owner); err != nil {
			log.Debugf("Player %s vanished while listing: %v", name, err)
			continue
		}

		sessions = append(sessions, &mprisSession{
			platform: p,
			busName:  name,
			owner:    owner,
			pkg:      p.packageName(ctx, name, owner),
		})
	}
	return sessions, nil
}

// packageName resolves the name of the process owning the player, falling
// back to the bus name suffix.
func (p *MPRISPlatform) packageName(ctx context.Context, busName, owner string) string {
	p.mu.Lock()
	pkg, ok := p.packages[owner]
	p.mu.Unlock()
	if ok {
		return pkg
	}

	pkg = packageFromBusName(busName)

	var pid uint32
	err := p.conn.BusObject().CallWithContext(ctx, dbusInterface+".GetConnectionUnixProcessID", 0, owner).Store(&pid)
	if err == nil && pid != 0 {
		if proc, err := process.NewProcessWithContext(ctx, int32(pid)); err == nil {
			if name, err := proc.NameWithContext(ctx); err == nil && name != "" {
				pkg = name
			}
		}
	} else if err != nil {
		log.Debugf("No process id for %s: %v", owner, err)
	}

	p.mu.Lock()
	p.packages[owner] = pkg
	p.mu.Unlock()
	return pkg
}

func (p *MPRISPlatform) forget(owner string) {
	p.mu.Lock()
	delete(p.packages, owner)
	p.mu.Unlock()
}

// WatchActiveSessions calls fn whenever a player appears or disappears.
func (p *MPRISPlatform) WatchActiveSessions(fn func([]Session)) (func(), error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.watchers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}, nil
}

func (p *MPRISPlatform) register(s *mprisSession, cb Callback) (func(), error) {
	match := []dbus.MatchOption{
		dbus.WithMatchSender(s.owner),
		dbus.WithMatchObjectPath(mprisObjectPath),
		dbus.WithMatchInterface(dbusPropertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := p.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", s.busName, err)
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.callbacks[id] = &registration{session: s, cb: cb}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.callbacks, id)
			p.mu.Unlock()
			if err := p.conn.RemoveMatchSignal(match...); err != nil {
				log.Debugf("Failed to remove match for %s: %v", s.busName, err)
			}
		})
	}, nil
}

func (p *MPRISPlatform) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.callTimeout)
}

// Close disconnects from the session bus
func (p *MPRISPlatform) Close() error {
	err := p.conn.Close()
	<-p.done
	return err
}

// mprisSession is a player seen on the bus
type mprisSession struct {
	platform *MPRISPlatform
	busName  string
	owner    string
	pkg      string
}

func (s *mprisSession) Token() string       { return s.busName }
func (s *mprisSession) PackageName() string { return s.pkg }

func (s *mprisSession) object() dbus.BusObject {
	return s.platform.conn.Object(s.owner, mprisObjectPath)
}

func (s *mprisSession) property(name string) (dbus.Variant, error) {
	ctx, cancel := s.platform.context()
	defer cancel()

	var v dbus.Variant
	err := s.object().CallWithContext(ctx, dbusPropertiesInterface+".Get", 0, mprisPlayerInterface, name).Store(&v)
	if err != nil {
		return v, fmt.Errorf("failed to get %s from %s: %w", name, s.busName, err)
	}
	return v, nil
}

func (s *mprisSession) PlaybackState() (PlaybackState, error) {
	v, err := s.property("PlaybackStatus")
	if err != nil {
		return StateNone, err
	}
	status, ok := v.Value().(string)
	if !ok {
		return StateNone, fmt.Errorf("unexpected PlaybackStatus type %s", v.Signature())
	}
	return ParsePlaybackStatus(status), nil
}

func (s *mprisSession) metadataMap() (map[string]dbus.Variant, error) {
	v, err := s.property("Metadata")
	if err != nil {
		return nil, err
	}
	m, _ := v.Value().(map[string]dbus.Variant)
	return m, nil
}

func (s *mprisSession) Title() (string, error) {
	m, err := s.metadataMap()
	if err != nil {
		return "", err
	}
	return variantString(m, "xesam:title"), nil
}

func (s *mprisSession) Metadata() (*Metadata, error) {
	m, err := s.metadataMap()
	if err != nil || len(m) == 0 {
		return nil, err
	}

	md := parseMetadataMap(m)
	if md.ArtURL != "" && s.platform.art != nil {
		// The loader's own fetch timeout applies.
		img, err := s.platform.art.Load(context.Background(), md.ArtURL)
		if err != nil {
			log.Debugf("No art for %s: %v", s.busName, err)
		} else {
			md.Art = img
		}
	}
	return md, nil
}

func (s *mprisSession) call(method string) error {
	ctx, cancel := s.platform.context()
	defer cancel()
	return s.object().CallWithContext(ctx, mprisPlayerInterface+"."+method, 0).Err
}

func (s *mprisSession) Play() error     { return s.call("Play") }
func (s *mprisSession) Pause() error    { return s.call("Pause") }
func (s *mprisSession) Stop() error     { return s.call("Stop") }
func (s *mprisSession) Next() error     { return s.call("Next") }
func (s *mprisSession) Previous() error { return s.call("Previous") }

func (s *mprisSession) RegisterCallback(cb Callback) (func(), error) {
	return s.platform.register(s, cb)
}
