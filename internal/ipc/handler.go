package ipc

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

var log = logging.MustGetLogger("ipc")

const peerBuffer = 64

// Peer is one connected client on any transport. Outgoing frames are queued
// on a buffered channel drained by the transport's writer goroutine.
type Peer struct {
	remote string
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	mu           sync.Mutex
	cancelListen func()
}

// NewPeer creates a peer for remote
func NewPeer(remote string) *Peer {
	return &Peer{
		remote: remote,
		send:   make(chan []byte, peerBuffer),
		done:   make(chan struct{}),
	}
}

// Remote returns the peer's address
func (p *Peer) Remote() string { return p.remote }

// Outbox yields encoded frames for the writer goroutine.
func (p *Peer) Outbox() <-chan []byte { return p.send }

// Done is closed once the peer is closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Send queues an event without blocking. Events that do not fit are dropped.
func (p *Peer) Send(ev media.Event) {
	data, err := EncodeEvent(ev)
	if err != nil {
		log.Errorf("Failed to encode %s event: %v", ev.Kind(), err)
		return
	}
	select {
	case <-p.done:
	case p.send <- data:
	default:
		log.Warningf("Client %s too slow, dropped %s event", p.remote, ev.Kind())
	}
}

// Reply queues a response, waiting for room. It reports false once the peer
// is closed.
func (p *Peer) Reply(resp *Response) bool {
	data, err := EncodeResponse(resp)
	if err != nil {
		log.Errorf("Failed to encode response: %v", err)
		return false
	}
	select {
	case p.send <- data:
		return true
	case <-p.done:
		return false
	}
}

// Close stops listening and releases the writer goroutine.
func (p *Peer) Close() {
	p.once.Do(func() {
		p.stopListening()
		close(p.done)
	})
}

func (p *Peer) listen(subscribe func(media.EventSink) func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelListen != nil {
		p.cancelListen()
	}
	p.cancelListen = subscribe(p)
}

func (p *Peer) stopListening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelListen == nil {
		return false
	}
	p.cancelListen()
	p.cancelListen = nil
	return true
}

// Dispatcher authenticates requests and routes them to the bridge.
type Dispatcher struct {
	authManager *auth.Manager
	handler     *bridge.Handler
	requireAuth bool
}

// NewDispatcher creates a dispatcher. Without requireAuth every command is
// accepted, for trusted single-user sockets.
func NewDispatcher(authManager *auth.Manager, handler *bridge.Handler, requireAuth bool) *Dispatcher {
	return &Dispatcher{authManager: authManager, handler: handler, requireAuth: requireAuth}
}

// Handle processes req on behalf of p
func (d *Dispatcher) Handle(p *Peer, req *Request) *Response {
	start := time.Now()
	RequestLogger(p.remote, req)

	resp := d.handle(p, req)

	ResponseLogger(req, resp, time.Since(start))
	return resp
}

func (d *Dispatcher) handle(p *Peer, req *Request) *Response {
	// Pair command doesn't require authentication
	if req.Cmd == CmdPair {
		return d.handlePair(req)
	}

	if resp := d.authenticate(p, req.Token); resp != nil {
		return resp
	}

	switch req.Cmd {
	case CmdListen:
		p.listen(d.handler.Subscribe)
		log.Infof("Client %s is now the event subscriber", p.remote)
		resp, _ := NewSuccessResponse(nil)
		return resp

	case CmdCancel:
		if p.stopListening() {
			log.Infof("Client %s stopped listening", p.remote)
		}
		resp, _ := NewSuccessResponse(nil)
		return resp
	}

	result, err := d.handler.Call(string(req.Cmd), req.Data)
	if err != nil {
		return NewCallErrorResponse(err)
	}

	resp, err := NewSuccessResponse(result)
	if err != nil {
		return NewErrorResponse("INTERNAL", "failed to encode result")
	}
	return resp
}

// authenticate returns an error response, or nil if the token is accepted.
func (d *Dispatcher) authenticate(p *Peer, token string) *Response {
	if !d.requireAuth {
		return nil
	}
	err := d.authManager.Authenticate(token, p.remote)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrLockedOut):
		return NewErrorResponse(CodeLockedOut, err.Error())
	default:
		return NewErrorResponse(CodeUnauthorized, "unauthorized")
	}
}

func (d *Dispatcher) handlePair(req *Request) *Response {
	var pairReq PairRequest
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &pairReq); err != nil {
			return NewErrorResponse(CodeInvalidRequest, "invalid pair request")
		}
	}

	pairing, err := d.authManager.Pair(pairReq.ClientName)
	if err != nil {
		log.Errorf("Pairing failed: %v", err)
		return NewErrorResponse("INTERNAL", err.Error())
	}

	resp, err := NewSuccessResponse(pairing)
	if err != nil {
		return NewErrorResponse("INTERNAL", "internal error")
	}
	return resp
}

// RequestLogger logs incoming requests
func RequestLogger(remote string, req *Request) {
	log.Debugf("Request from %s: cmd=%s token=%s...", remote, req.Cmd, truncateToken(req.Token))
}

// ResponseLogger logs outgoing responses
func ResponseLogger(req *Request, resp *Response, duration time.Duration) {
	if resp.Success {
		log.Debugf("Response to %s: success duration=%v", req.Cmd, duration)
	} else {
		log.Infof("Response to %s: code=%s error=%q duration=%v", req.Cmd, resp.Code, resp.Error, duration)
	}
}

func truncateToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
