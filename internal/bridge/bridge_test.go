package bridge_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
	"github.com/austinkregel/local-media/mediasessiond/internal/media/mediatest"
)

type opener struct{ opened int }

func (o *opener) Open() bool {
	o.opened++
	return true
}

func newHandler(t *testing.T, enabled bool, sessions ...*mediatest.Session) (*bridge.Handler, *mediatest.Recorder, *opener) {
	t.Helper()

	p := mediatest.NewPlatform(sessions...)
	c := media.NewController(p, media.EntitlementFunc(func() bool { return enabled }), media.Options{})
	c.Attach()
	t.Cleanup(c.Detach)

	o := &opener{}
	h := bridge.NewHandler(c, o)
	rec := &mediatest.Recorder{}
	h.Subscribe(rec)
	return h, rec, o
}

func TestCallSelectAndCommand(t *testing.T) {
	a := mediatest.NewSession("A", "com.example.a")
	h, rec, _ := newHandler(t, true, a)

	_, err := h.Call(bridge.MethodGetActiveMediaSessions, nil)
	require.NoError(t, err)
	assert.Equal(t, []media.EventKind{media.EventSessions}, rec.Kinds())

	got, err := h.Call(bridge.MethodSetCurrentMediaSession, json.RawMessage(`{"sessionToken":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	got, err = h.Call(bridge.MethodNext, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{"Next"}, a.Calls())
}

func TestCallSelectNullClears(t *testing.T) {
	a := mediatest.NewSession("A", "com.example.a")
	h, _, _ := newHandler(t, true, a)

	_, err := h.Call(bridge.MethodGetActiveMediaSessions, nil)
	require.NoError(t, err)
	_, err = h.Call(bridge.MethodSetCurrentMediaSession, json.RawMessage(`{"sessionToken":"A"}`))
	require.NoError(t, err)

	for _, args := range []string{`{"sessionToken":null}`, `{}`, `null`, ``} {
		got, err := h.Call(bridge.MethodSetCurrentMediaSession, json.RawMessage(args))
		require.NoError(t, err, args)
		assert.Nil(t, got, args)
	}

	_, err = h.Call(bridge.MethodPlay, nil)
	assert.Equal(t, "NO_SESSION_SELECTED", bridge.ErrorCode(err))
}

func TestCallSelectMalformed(t *testing.T) {
	h, _, _ := newHandler(t, true)

	for _, args := range []string{`{"sessionToken":42}`, `"A"`, `[1]`, `{"sessionToken":`} {
		_, err := h.Call(bridge.MethodSetCurrentMediaSession, json.RawMessage(args))
		assert.Equal(t, "INVALID_ARGUMENT", bridge.ErrorCode(err), args)
	}
}

func TestCallSelectUnknown(t *testing.T) {
	h, _, _ := newHandler(t, true, mediatest.NewSession("A", "com.example.a"))

	_, err := h.Call(bridge.MethodGetActiveMediaSessions, nil)
	require.NoError(t, err)
	_, err = h.Call(bridge.MethodSetCurrentMediaSession, json.RawMessage(`{"sessionToken":"C"}`))
	assert.Equal(t, "INVALID_TOKEN", bridge.ErrorCode(err))
}

func TestCallListenerMethods(t *testing.T) {
	h, _, o := newHandler(t, false)

	got, err := h.Call(bridge.MethodIsNotificationListenerEnabled, nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = h.Call(bridge.MethodGetActiveMediaSessions, nil)
	assert.Equal(t, "PERMISSION_DENIED", bridge.ErrorCode(err))

	got, err = h.Call(bridge.MethodOpenNotificationListenerSettings, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
	assert.Equal(t, 1, o.opened)
}

func TestCallUnknownMethod(t *testing.T) {
	h, _, _ := newHandler(t, true)

	_, err := h.Call("seekTo", nil)
	assert.ErrorIs(t, err, bridge.ErrNotImplemented)
	assert.Equal(t, "NOT_IMPLEMENTED", bridge.ErrorCode(err))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", bridge.ErrorCode(nil))
	assert.Equal(t, "INTERNAL", bridge.ErrorCode(errors.New("boom")))
	assert.Equal(t, "TRANSPORT_ERROR", bridge.ErrorCode(media.NewError(media.CodeTransportError, "x", nil)))
}

func TestMethods(t *testing.T) {
	h, _, _ := newHandler(t, true)
	assert.Len(t, h.Methods(), 9)
	assert.Contains(t, h.Methods(), bridge.MethodSetCurrentMediaSession)
}
