package syncstream

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"audiora/internal/logger"
	"audiora/pkg/models"
)

// Server fans progress-update events out to connected companion devices
// as newline-delimited JSON over TCP.
type Server struct {
	addr string
	log  *logger.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}

	events <-chan models.ProgressUpdate
}

func New(addr string, events <-chan models.ProgressUpdate, baseLog *logger.Logger) *Server {
	return &Server{
		addr:    addr,
		log:     baseLog.With("component", "syncstream"),
		clients: make(map[net.Conn]struct{}),
		events:  events,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("sync stream listening", "addr", s.addr)

	go s.broadcastLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.log.Warn("tcp accept", "error", err)
			continue
		}
		s.addClient(conn)
		s.log.Debug("sync client connected", "remote", conn.RemoteAddr().String())

		go s.readLoop(conn)
	}
}

func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = struct{}{}
}

func (s *Server) removeClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
	_ = conn.Close()
}

// readLoop discards input; clients send nothing, the read only detects
// disconnects.
func (s *Server) readLoop(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
	}
	s.removeClient(conn)
	s.log.Debug("sync client disconnected", "remote", conn.RemoteAddr().String())
}

func (s *Server) broadcastLoop() {
	for evt := range s.events {
		b, err := json.Marshal(evt)
		if err != nil {
			s.log.Error("marshal progress update", "error", err)
			continue
		}
		// newline-delimited so clients can read line by line off the stream
		b = append(b, '\n')

		s.mu.Lock()
		for conn := range s.clients {
			if _, err := conn.Write(b); err != nil {
				delete(s.clients, conn)
				_ = conn.Close()
			}
		}
		s.mu.Unlock()
	}
}
