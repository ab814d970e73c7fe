package media

import "fmt"

// registry tracks the active session list and the single selection.
type registry struct {
	platform    Platform
	entitlement Entitlement
}

// refresh replaces the active list wholesale with the platform's current one.
func (r *registry) refresh(st *state) ([]Session, error) {
	if !r.entitlement.Enabled() {
		return nil, ErrPermissionDenied
	}

	sessions, err := r.platform.ActiveSessions()
	if err != nil {
		return nil, NewError(CodeTransportError, "failed to list active sessions", err)
	}
	st.active = sessions
	return sessions, nil
}

// byToken returns the first active session whose token equals token.
func (r *registry) byToken(st *state, token string) Session {
	for _, s := range st.active {
		if s.Token() == token {
			return s
		}
	}
	return nil
}

// selectSession tears down the current selection, then registers cb on the
// session matching token. A failed lookup leaves nothing selected.
func (r *registry) selectSession(st *state, token string, cb func(gen uint64) Callback) (Session, error) {
	r.clear(st)

	s := r.byToken(st, token)
	if s == nil {
		return nil, NewError(CodeInvalidToken, fmt.Sprintf("no active session with token %q", token), nil)
	}

	unregister, err := s.RegisterCallback(cb(st.generation))
	if err != nil {
		return nil, NewError(CodeTransportError, "failed to register session callback", err)
	}

	st.selected = s
	st.unregister = unregister
	return s, nil
}

// clear unregisters the selection's callback and forgets it.
func (r *registry) clear(st *state) {
	if st.unregister != nil {
		st.unregister()
		st.unregister = nil
	}
	st.selected = nil
	st.generation++
}
