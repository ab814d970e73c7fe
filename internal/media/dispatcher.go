package media

import "fmt"

// dispatcher forwards transport commands to the selected session.
type dispatcher struct{}

func (dispatcher) dispatch(st *state, cmd Command) error {
	s := st.selected
	if s == nil {
		return ErrNoSessionSelected
	}

	var err error
	switch cmd {
	case CmdPlay:
		err = s.Play()
	case CmdPause:
		err = s.Pause()
	case CmdStop:
		err = s.Stop()
	case CmdNext:
		err = s.Next()
	case CmdPrevious:
		err = s.Previous()
	default:
		return NewError(CodeInvalidArgument, fmt.Sprintf("unknown command %d", cmd), nil)
	}

	if err != nil {
		log.Warningf("%s on %s failed: %v", cmd, s.Token(), err)
		return NewError(CodeTransportError, fmt.Sprintf("%s failed for %s", cmd, s.Token()), err)
	}
	log.Debugf("%s sent to %s", cmd, s.Token())
	return nil
}
