package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsFeedBuffer   = 256
)

// handleWatch streams committed events over a websocket. An optional
// ?after=<seq> query replays history strictly after that sequence before
// switching to the live feed, matching the /v1/events filter.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		after = v
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before replaying so no commit slips between the two.
	feed, cancel := s.node.Subscribe(wsFeedBuffer)
	defer cancel()

	lastSent := after
	for _, e := range s.node.State().EventsSince(after) {
		if err := writeEvent(conn, e); err != nil {
			return
		}
		lastSent = e.Seq
	}

	// Reader goroutine notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-feed:
			if !ok {
				return
			}
			if e.Seq <= lastSent {
				continue
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
			lastSent = e.Seq
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, e any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(e)
}
