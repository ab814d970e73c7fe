package ipc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

func TestEncodeRequest(t *testing.T) {
	req := &Request{
		Cmd:   CmdPlay,
		Token: "test-token",
	}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Result is not valid JSON: %v", err)
	}

	if decoded["cmd"] != "play" {
		t.Errorf("Expected cmd 'play', got '%v'", decoded["cmd"])
	}
	if decoded["token"] != "test-token" {
		t.Errorf("Expected token 'test-token', got '%v'", decoded["token"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("Empty data should be omitted")
	}
}

func TestDecodeRequestWithData(t *testing.T) {
	data := []byte(`{"cmd":"setCurrentMediaSession","token":"tok","data":{"sessionToken":"org.mpris.MediaPlayer2.vlc"}}`)

	req, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}

	if req.Cmd != CmdSetCurrentMediaSession {
		t.Errorf("Expected setCurrentMediaSession, got '%s'", req.Cmd)
	}

	var args bridge.SelectArgs
	if err := json.Unmarshal(req.Data, &args); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
	if args.SessionToken == nil || *args.SessionToken != "org.mpris.MediaPlayer2.vlc" {
		t.Errorf("Unexpected session token %v", args.SessionToken)
	}
}

func TestDecodeRequestInvalid(t *testing.T) {
	for _, in := range []string{`{invalid}`, `{"token":"x"}`, ``} {
		if _, err := DecodeRequest([]byte(in)); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	data := []byte(`{"success":false,"error":"no media session selected","code":"NO_SESSION_SELECTED"}`)

	resp, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Code != "NO_SESSION_SELECTED" {
		t.Errorf("Unexpected code %q", resp.Code)
	}
}

func TestNewSuccessResponse(t *testing.T) {
	resp, err := NewSuccessResponse("org.mpris.MediaPlayer2.vlc")
	if err != nil {
		t.Fatalf("NewSuccessResponse failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if string(resp.Data) != `"org.mpris.MediaPlayer2.vlc"` {
		t.Errorf("Unexpected data %s", resp.Data)
	}

	resp, err = NewSuccessResponse(nil)
	if err != nil {
		t.Fatalf("NewSuccessResponse failed: %v", err)
	}
	if resp.Data != nil {
		t.Errorf("Expected nil data, got %s", resp.Data)
	}
}

func TestNewCallErrorResponse(t *testing.T) {
	resp := NewCallErrorResponse(media.ErrNoSessionSelected)
	if resp.Success || resp.Code != "NO_SESSION_SELECTED" || resp.Error == "" {
		t.Errorf("Unexpected response %+v", resp)
	}

	resp = NewCallErrorResponse(errors.New("boom"))
	if resp.Code != "INTERNAL" {
		t.Errorf("Expected INTERNAL, got %s", resp.Code)
	}
}

func TestEncodeEvent(t *testing.T) {
	data, err := EncodeEvent(media.PlaybackStateEvent{PlaybackState: "STATE_PLAYING", Package: "vlc", Title: "Song"})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	want := `{"type":"playbackState","data":{"PlaybackState":"STATE_PLAYING","Package":"vlc","Title":"Song"}}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}

	data, err = EncodeEvent(media.ChangedEvent{NotifyChanged: true})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if string(data) != `{"type":"notifyChanged","data":{"notifyChanged":true}}` {
		t.Errorf("Unexpected changed event %s", data)
	}
}

func TestCommandTypes(t *testing.T) {
	commands := map[CommandType]string{
		CmdPair:                             "pair",
		CmdListen:                           "listen",
		CmdCancel:                           "cancel",
		CmdPrevious:                         "previous",
		CmdGetActiveMediaSessions:           "getActiveMediaSessions",
		CmdIsNotificationListenerEnabled:    "isNotificationListenerEnabled",
		CmdOpenNotificationListenerSettings: "openNotificationListenerSettings",
	}

	for cmd, expected := range commands {
		if string(cmd) != expected {
			t.Errorf("Expected %s, got %s", expected, cmd)
		}
	}
}
