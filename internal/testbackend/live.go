package testbackend

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/live"
	"github.com/and161185/mediadesk/internal/live/wschannel"
	"github.com/and161185/mediadesk/internal/model"
)

func (s *Server) startLive(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexContent(model.KindPodcast, id) < 0 {
		fail(c, http.StatusNotFound, "Podcast not found")
		return
	}
	if cur, ok := s.live[id]; ok && cur.Status == model.LiveOn {
		fail(c, http.StatusConflict, "Podcast is already live")
		return
	}
	sess := model.LiveSession{SessionID: newID(), PodcastID: id, Status: model.LiveOn, StartedAt: s.now()}
	s.live[id] = sess
	ok(c, http.StatusOK, sess)
}

func (s *Server) endLive(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	sess, found := s.live[id]
	if !found || sess.Status != model.LiveOn {
		s.mu.Unlock()
		fail(c, http.StatusConflict, "Podcast is not live")
		return
	}
	sess.Status = model.LiveEnded
	s.live[id] = sess
	s.mu.Unlock()

	s.rt.broadcast(id, live.EventLiveEnded, nil)
	ok(c, http.StatusOK, sess)
}

func (s *Server) liveStatus(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	sess, found := s.live[id]
	s.mu.Unlock()
	if !found {
		sess = model.LiveSession{PodcastID: id, Status: model.LiveScheduled}
	}
	sess.Listeners = s.rt.listeners(id)
	ok(c, http.StatusOK, sess)
}

// realtime serves the podcast namespace: broadcasters join, stream audio and
// receive listener counts; listeners only join.
type realtime struct {
	s  *Server
	up websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]map[*rtConn]string // podcast -> conn -> role
	counts map[string]int
}

type rtConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *rtConn) send(f wschannel.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func newRealtime(s *Server) *realtime {
	return &realtime{
		s:      s,
		up:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		rooms:  map[string]map[*rtConn]string{},
		counts: map[string]int{},
	}
}

func (rt *realtime) serve(c *gin.Context) {
	if _, err := rt.s.verify(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")); err != nil {
		fail(c, http.StatusUnauthorized, err.Error())
		return
	}
	ws, err := rt.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rt.s.log.Warn("ws upgrade", zap.Error(err))
		return
	}
	conn := &rtConn{ws: ws}
	defer func() {
		rt.leave(conn)
		_ = ws.Close()
	}()

	for {
		var f wschannel.Frame
		if err := ws.ReadJSON(&f); err != nil {
			return
		}
		switch f.Event {
		case live.EventJoin:
			var p struct {
				PodcastID string `json:"podcastId"`
				Role      string `json:"role"`
			}
			if err := json.Unmarshal(f.Data, &p); err != nil || p.PodcastID == "" {
				_ = conn.send(wschannel.Frame{Event: wschannel.EventAck, ID: f.ID, Data: json.RawMessage(`{"ok":false}`)})
				continue
			}
			rt.join(conn, p.PodcastID, p.Role)
			_ = conn.send(wschannel.Frame{Event: wschannel.EventAck, ID: f.ID, Data: json.RawMessage(`{"ok":true}`)})
			rt.broadcast(p.PodcastID, live.EventListenerUpdate, map[string]int{"count": rt.listeners(p.PodcastID)})
		case live.EventAudio:
			var p struct {
				PodcastID string `json:"podcastId"`
				Chunk     string `json:"chunk"`
			}
			if err := json.Unmarshal(f.Data, &p); err != nil {
				continue
			}
			if _, err := base64.StdEncoding.DecodeString(p.Chunk); err != nil {
				continue
			}
			rt.mu.Lock()
			rt.counts[p.PodcastID]++
			rt.mu.Unlock()
		}
		if f.ID != 0 && f.Event != live.EventJoin {
			_ = conn.send(wschannel.Frame{Event: wschannel.EventAck, ID: f.ID})
		}
	}
}

func (rt *realtime) join(conn *rtConn, podcastID, role string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.rooms[podcastID] == nil {
		rt.rooms[podcastID] = map[*rtConn]string{}
	}
	rt.rooms[podcastID][conn] = role
}

func (rt *realtime) leave(conn *rtConn) {
	rt.mu.Lock()
	var left []string
	for id, room := range rt.rooms {
		if _, ok := room[conn]; ok {
			delete(room, conn)
			left = append(left, id)
		}
	}
	rt.mu.Unlock()
	for _, id := range left {
		rt.broadcast(id, live.EventListenerUpdate, map[string]int{"count": rt.listeners(id)})
	}
}

func (rt *realtime) listeners(podcastID string) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for _, role := range rt.rooms[podcastID] {
		if role != "broadcaster" {
			n++
		}
	}
	return n
}

func (rt *realtime) chunks(podcastID string) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.counts[podcastID]
}

func (rt *realtime) broadcast(podcastID, event string, data any) {
	raw, _ := json.Marshal(data)
	rt.mu.Lock()
	conns := make([]*rtConn, 0, len(rt.rooms[podcastID]))
	for c := range rt.rooms[podcastID] {
		conns = append(conns, c)
	}
	rt.mu.Unlock()
	for _, c := range conns {
		if err := c.send(wschannel.Frame{Event: event, Data: raw}); err != nil {
			rt.s.log.Debug("ws send", zap.Error(err))
		}
	}
}
