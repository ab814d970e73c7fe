package ipc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
)

// maxLineBytes bounds a single request line
const maxLineBytes = 1 << 20

// Server handles IPC communication with clients over a unix socket
type Server struct {
	socketPath string
	dispatcher *Dispatcher
	listener   net.Listener
	ready      chan struct{}

	mu      sync.Mutex
	clients map[net.Conn]*Peer
}

// NewServer creates a new IPC server
func NewServer(socketPath string, dispatcher *Dispatcher) *Server {
	return &Server{
		socketPath: socketPath,
		dispatcher: dispatcher,
		ready:      make(chan struct{}),
		clients:    make(map[net.Conn]*Peer),
	}
}

// Ready is closed once the socket accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Start listens on the socket and serves clients until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Infof("Listening on %s", s.socketPath)
	close(s.ready)

	go s.acceptLoop(ctx)

	<-ctx.Done()

	log.Infof("Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn, p := range s.clients {
		p.Close()
		conn.Close()
	}
	s.mu.Unlock()

	log.Infof("Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Errorf("Accept error: %v", err)
			return
		}

		p := NewPeer(fmt.Sprintf("unix:%p", conn))

		s.mu.Lock()
		s.clients[conn] = p
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Infof("New client %s (active: %d)", p.Remote(), clientCount)

		go s.writeLoop(conn, p)
		go s.handleConnection(conn, p)
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(conn net.Conn, p *Peer) {
	for {
		select {
		case data := <-p.Outbox():
			data = append(data, '\n')
			if _, err := conn.Write(data); err != nil {
				log.Debugf("Write error to %s: %v", p.Remote(), err)
				p.Close()
				conn.Close()
				return
			}
		case <-p.Done():
			return
		}
	}
}

func (s *Server) handleConnection(conn net.Conn, p *Peer) {
	defer func() {
		p.Close()
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()
		log.Infof("Client %s disconnected (active: %d)", p.Remote(), clientCount)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req, err := DecodeRequest(line)
		if err != nil {
			log.Warningf("Invalid request from %s: %v", p.Remote(), err)
			if !p.Reply(NewErrorResponse(CodeInvalidRequest, "invalid request format")) {
				return
			}
			continue
		}

		if !p.Reply(s.dispatcher.Handle(p, req)) {
			return
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Warningf("Read error from %s: %v", p.Remote(), err)
	}
}
