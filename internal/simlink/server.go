package simlink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/banshee-data/mpc.driver/internal/monitoring"
)

// Server accepts simulator websocket connections on any path and feeds
// their frames through a Session. Plain HTTP requests get a short banner.
type Server struct {
	Session *Session
	// OriginPatterns is passed to websocket.Accept. Empty accepts any
	// origin, which is what the simulator needs.
	OriginPatterns []string
}

func NewServer(session *Session) *Server {
	return &Server{Session: session}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<h1>mpc-driver</h1>"))
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: s.OriginPatterns}
	if len(s.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		monitoring.Logf("simlink: accept from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.CloseNow()

	monitoring.Logf("simlink: connected %s", r.RemoteAddr)
	err = s.serve(r.Context(), conn)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		monitoring.Logf("simlink: disconnected %s", r.RemoteAddr)
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Logf("simlink: connection %s: %v", r.RemoteAddr, err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// serve handles messages serially until the connection or ctx ends.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn) error {
	send := func(msg string) error {
		return conn.Write(ctx, websocket.MessageText, []byte(msg))
	}
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := s.Session.Handle(string(data), send); err != nil {
			return err
		}
	}
}
