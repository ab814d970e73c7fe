package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/austinkregel/local-media/mediasessiond/internal/ipc"
)

const writeWait = 10 * time.Second

// handleEvents upgrades to a websocket that becomes the event subscriber.
// Clients may also send request frames; responses share the stream.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warningf("Websocket upgrade from %s failed: %v", c.ClientIP(), err)
		return
	}

	token := c.GetString("token")
	p := ipc.NewPeer("ws:" + c.Request.RemoteAddr)

	s.mu.Lock()
	s.peers[p] = conn
	s.mu.Unlock()

	log.Infof("Websocket client connected: %s", p.Remote())

	go s.writePump(conn, p)

	// The upgrade was already authenticated, so listen on its token.
	p.Reply(s.dispatcher.Handle(p, &ipc.Request{Cmd: ipc.CmdListen, Token: token}))

	go s.readPump(conn, p, token)
}

// writePump is the only writer on conn.
func (s *Server) writePump(conn *websocket.Conn, p *ipc.Peer) {
	defer conn.Close()
	for {
		select {
		case msg := <-p.Outbox():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("Write error to %s: %v", p.Remote(), err)
				p.Close()
				return
			}
		case <-p.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, p *ipc.Peer, token string) {
	defer func() {
		p.Close()
		conn.Close()
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		log.Infof("Websocket client disconnected: %s", p.Remote())
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		req, err := ipc.DecodeRequest(msg)
		if err != nil {
			log.Warningf("Invalid request from %s: %v", p.Remote(), err)
			if !p.Reply(ipc.NewErrorResponse(ipc.CodeInvalidRequest, "invalid request format")) {
				return
			}
			continue
		}
		if req.Token == "" {
			req.Token = token
		}

		if !p.Reply(s.dispatcher.Handle(p, req)) {
			return
		}
	}
}
