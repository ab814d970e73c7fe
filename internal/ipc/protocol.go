// Package ipc handles inter-process communication between the daemon and clients.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

// CommandType represents the type of command
type CommandType string

const (
	// Connection management
	CmdPair   CommandType = "pair"
	CmdListen CommandType = "listen"
	CmdCancel CommandType = "cancel"

	// Media methods, named as in the bridge
	CmdPlay                             CommandType = bridge.MethodPlay
	CmdPause                            CommandType = bridge.MethodPause
	CmdStop                             CommandType = bridge.MethodStop
	CmdNext                             CommandType = bridge.MethodNext
	CmdPrevious                         CommandType = bridge.MethodPrevious
	CmdGetActiveMediaSessions           CommandType = bridge.MethodGetActiveMediaSessions
	CmdSetCurrentMediaSession           CommandType = bridge.MethodSetCurrentMediaSession
	CmdIsNotificationListenerEnabled    CommandType = bridge.MethodIsNotificationListenerEnabled
	CmdOpenNotificationListenerSettings CommandType = bridge.MethodOpenNotificationListenerSettings
)

// Error codes for failures outside the media taxonomy
const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeLockedOut      = "LOCKED_OUT"
	CodeInvalidRequest = "INVALID_REQUEST"
)

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd   CommandType     `json:"cmd"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PairRequest is the data for a pair command
type PairRequest struct {
	ClientName string `json:"clientName"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Cmd == "" {
		return nil, fmt.Errorf("failed to decode request: missing cmd")
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response with a wire code
func NewErrorResponse(code, msg string) *Response {
	return &Response{
		Success: false,
		Error:   msg,
		Code:    code,
	}
}

// NewCallErrorResponse creates an error response for a failed bridge call
func NewCallErrorResponse(err error) *Response {
	return NewErrorResponse(bridge.ErrorCode(err), err.Error())
}

// NewPushMessage creates a push message for streaming data
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}

// EncodeEvent encodes a media event as a push message tagged with its kind
func EncodeEvent(ev media.Event) ([]byte, error) {
	return NewPushMessage(string(ev.Kind()), ev)
}
