package udpnotify

import (
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"audiora/internal/logger"
)

// Announcement is the datagram payload pushed to subscribers.
type Announcement struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Server implements a minimal subscribe/broadcast protocol over UDP:
// clients send "SUBSCRIBE" to be remembered, "UNSUBSCRIBE" to be
// removed; Broadcast fans an announcement out to every known address.
type Server struct {
	addr string
	log  *logger.Logger

	mu      sync.Mutex
	clients map[string]*net.UDPAddr // key = ip:port

	conn *net.UDPConn
}

func New(addr string, baseLog *logger.Logger) *Server {
	return &Server{
		addr:    addr,
		log:     baseLog.With("component", "udpnotify"),
		clients: make(map[string]*net.UDPAddr),
	}
}

func (s *Server) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn

	s.log.Info("udp announcements listening", "addr", s.addr)

	buf := make([]byte, 2048)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			s.log.Warn("udp read", "error", err)
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(string(buf[:n]))) {
		case "SUBSCRIBE":
			s.mu.Lock()
			s.clients[clientAddr.String()] = clientAddr
			s.mu.Unlock()
			s.log.Debug("udp subscribed", "addr", clientAddr.String(), "total", s.count())
		case "UNSUBSCRIBE":
			s.mu.Lock()
			delete(s.clients, clientAddr.String())
			s.mu.Unlock()
			s.log.Debug("udp unsubscribed", "addr", clientAddr.String(), "total", s.count())
		}
		// anything else is ignored
	}
}

func (s *Server) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Broadcast(message string) {
	if s.conn == nil {
		s.log.Warn("broadcast before server start")
		return
	}

	b, err := json.Marshal(Announcement{
		Type:      "announcement",
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.log.Error("marshal announcement", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, addr := range s.clients {
		if _, err := s.conn.WriteToUDP(b, addr); err != nil {
			s.log.Warn("udp send failed", "addr", key, "error", err)
		}
	}
}
