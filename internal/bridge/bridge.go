// Package bridge maps named client method calls onto the media controller.
// Every transport (the IPC socket, the HTTP API) funnels through one Handler
// so they share argument validation and error codes.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/op/go-logging"

	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

var log = logging.MustGetLogger("bridge")

// Method names
const (
	MethodPlay                             = "play"
	MethodPause                            = "pause"
	MethodStop                             = "stop"
	MethodNext                             = "next"
	MethodPrevious                         = "previous"
	MethodGetActiveMediaSessions           = "getActiveMediaSessions"
	MethodSetCurrentMediaSession           = "setCurrentMediaSession"
	MethodIsNotificationListenerEnabled    = "isNotificationListenerEnabled"
	MethodOpenNotificationListenerSettings = "openNotificationListenerSettings"
)

var methods = []string{
	MethodPlay,
	MethodPause,
	MethodStop,
	MethodNext,
	MethodPrevious,
	MethodGetActiveMediaSessions,
	MethodSetCurrentMediaSession,
	MethodIsNotificationListenerEnabled,
	MethodOpenNotificationListenerSettings,
}

var commands = map[string]media.Command{
	MethodPlay:     media.CmdPlay,
	MethodPause:    media.CmdPause,
	MethodStop:     media.CmdStop,
	MethodNext:     media.CmdNext,
	MethodPrevious: media.CmdPrevious,
}

// ErrNotImplemented is returned for unknown method names.
var ErrNotImplemented = errors.New("method not implemented")

// Controller is the media controller surface the bridge drives.
type Controller interface {
	Subscribe(sink media.EventSink) (cancel func())
	PublishSessions() error
	Select(token string) (media.Session, error)
	ClearSelection()
	Dispatch(cmd media.Command) error
	ListenerEnabled() bool
}

// SettingsOpener navigates the user to the listener settings.
type SettingsOpener interface {
	Open() bool
}

// SelectArgs are the arguments of setCurrentMediaSession. A null token
// clears the selection.
type SelectArgs struct {
	SessionToken *string `json:"sessionToken"`
}

// Handler dispatches method calls
type Handler struct {
	controller Controller
	settings   SettingsOpener
}

// NewHandler creates a handler for controller
func NewHandler(controller Controller, settings SettingsOpener) *Handler {
	return &Handler{controller: controller, settings: settings}
}

// Methods lists the supported method names
func (h *Handler) Methods() []string {
	return append([]string(nil), methods...)
}

// Subscribe makes sink the event subscriber.
func (h *Handler) Subscribe(sink media.EventSink) func() {
	return h.controller.Subscribe(sink)
}

// Call invokes method with JSON args and returns its JSON-encodable result.
// Command methods and getActiveMediaSessions return nil on success.
func (h *Handler) Call(method string, args json.RawMessage) (interface{}, error) {
	if cmd, ok := commands[method]; ok {
		return nil, h.controller.Dispatch(cmd)
	}

	switch method {
	case MethodGetActiveMediaSessions:
		return nil, h.controller.PublishSessions()

	case MethodSetCurrentMediaSession:
		return h.setCurrentMediaSession(args)

	case MethodIsNotificationListenerEnabled:
		return h.controller.ListenerEnabled(), nil

	case MethodOpenNotificationListenerSettings:
		return h.settings.Open(), nil
	}

	log.Debugf("Unknown method %q", method)
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, method)
}

func (h *Handler) setCurrentMediaSession(raw json.RawMessage) (interface{}, error) {
	var args SelectArgs
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return nil, media.NewError(media.CodeInvalidArgument, "arguments must be an object", nil)
		}
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, media.NewError(media.CodeInvalidArgument, "sessionToken must be a string or null", err)
		}
	}

	if args.SessionToken == nil {
		h.controller.ClearSelection()
		return nil, nil
	}

	s, err := h.controller.Select(*args.SessionToken)
	if err != nil {
		return nil, err
	}
	return s.Token(), nil
}

// ErrorCode renders err as a stable wire code
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := media.CodeOf(err); ok {
		return code.String()
	}
	if errors.Is(err, ErrNotImplemented) {
		return "NOT_IMPLEMENTED"
	}
	return "INTERNAL"
}
