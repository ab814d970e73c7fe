package media

// notifier turns platform notifications into outbound events.
type notifier struct {
	snapshotOnChange bool
	extractor        InfoExtractor
}

// emit delivers ev to the subscriber, or drops it when there is none.
func (n *notifier) emit(st *state, ev Event) {
	if st.sink == nil {
		log.Debugf("No subscriber, dropping %s event", ev.Kind())
		return
	}
	st.sink.Send(ev)
}

func (n *notifier) sessionsChanged(st *state, sessions []Session) {
	if !n.snapshotOnChange {
		n.emit(st, ChangedEvent{NotifyChanged: true})
		return
	}
	n.sessions(st, sessions)
}

func (n *notifier) sessions(st *state, sessions []Session) {
	if st.sink == nil {
		log.Debugf("No subscriber, dropping %s event", EventSessions)
		return
	}
	n.emit(st, n.snapshot(sessions))
}

// snapshot builds the session list payload from sessions alone.
func (n *notifier) snapshot(sessions []Session) SessionsEvent {
	list := SessionList{
		Tokens:    make([]string, 0, len(sessions)),
		Packages:  make([]string, 0, len(sessions)),
		States:    make([]string, 0, len(sessions)),
		Titles:    make([]string, 0, len(sessions)),
		AlbumArts: make([]string, 0, len(sessions)),
	}

	for _, s := range sessions {
		list.Tokens = append(list.Tokens, s.Token())
		list.Packages = append(list.Packages, s.PackageName())

		if ps, err := s.PlaybackState(); err == nil {
			list.States = append(list.States, ps.String())
		} else {
			log.Debugf("No playback state for %s: %v", s.Token(), err)
			list.States = append(list.States, StateNone.String())
		}

		title, art := unknownTitle, noArt
		md, err := s.Metadata()
		if err != nil {
			log.Debugf("No metadata for %s: %v", s.Token(), err)
		}
		if md != nil {
			if md.Title != "" {
				title = md.Title
			}
			if md.Art != nil {
				if encoded, err := EncodeArt(md.Art, n.extractor.maxArtSize()); err == nil {
					art = encoded
				}
			}
		}
		list.Titles = append(list.Titles, title)
		list.AlbumArts = append(list.AlbumArts, art)
	}

	return SessionsEvent{Sessions: []SessionList{list}}
}

// current sends the state and metadata pair for a freshly selected session.
func (n *notifier) current(st *state, s Session) {
	n.playbackState(st, s)
	n.mediaInfo(st, s)
}

func (n *notifier) playbackState(st *state, s Session) {
	ps, err := s.PlaybackState()
	if err != nil {
		log.Errorf("Failed to update media info, no playback state for %s: %v", s.Token(), err)
		return
	}

	ev := PlaybackStateEvent{
		PlaybackState: ps.String(),
		Package:       s.PackageName(),
	}
	if title, err := s.Title(); err == nil {
		ev.Title = title
	}
	n.emit(st, ev)
}

func (n *notifier) mediaInfo(st *state, s Session) {
	md, err := s.Metadata()
	if err != nil {
		log.Warningf("Failed to read metadata for %s: %v", s.Token(), err)
		md = nil
	}
	n.emit(st, MediaInfoEvent{Info: n.extractor.Extract(md)})
}
