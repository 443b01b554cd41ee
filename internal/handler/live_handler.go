package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	locationDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-location/internal/suggest"
)

// Live session frame types.
const (
	FrameInput       = "input"
	FrameSelect      = "select"
	FrameSuggestions = "suggestions"
	FrameResolved    = "resolved"
	FrameError       = "error"
)

const (
	maxFieldsPerSession = 4
	sendBuffer          = 64
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientFrame is a message sent by the booking UI.
type ClientFrame struct {
	Type      string                    `json:"type"`
	Field     string                    `json:"field"`
	Text      string                    `json:"text,omitempty"`
	Selection *locationDomain.Selection `json:"selection,omitempty"`
}

// ServerFrame is a message pushed to the booking UI.
type ServerFrame struct {
	Type     string                           `json:"type"`
	Field    string                           `json:"field"`
	State    *suggest.State                   `json:"state,omitempty"`
	Location *locationDomain.ResolvedLocation `json:"location,omitempty"`
	Error    string                           `json:"error,omitempty"`
	Kind     failure.Kind                     `json:"kind,omitempty"`
}

// LiveHandler streams suggestions for the input fields of one booking screen
// over a websocket.
type LiveHandler struct {
	source   suggest.Source
	debounce time.Duration
	limit    int
	logger   *zap.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(source suggest.Source, debounce time.Duration, limit int, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		source:   source,
		debounce: debounce,
		limit:    limit,
		logger:   logger,
	}
}

// RegisterRoutes registers the websocket route on the given router group.
func (h *LiveHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/locations/live", h.Serve)
}

// Serve handles GET /api/v1/locations/live.
func (h *LiveHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	metrics.LiveSessions.Inc()
	defer metrics.LiveSessions.Dec()

	s := newLiveSession(conn, h)
	s.run()
}

// liveSession owns one websocket connection and its fields.
type liveSession struct {
	conn    *websocket.Conn
	handler *LiveHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	out    chan ServerFrame
	fields map[string]*suggest.Field
	wg     sync.WaitGroup
}

func newLiveSession(conn *websocket.Conn, h *LiveHandler) *liveSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &liveSession{
		conn:    conn,
		handler: h,
		logger:  h.logger.With(zap.String("remote", conn.RemoteAddr().String())),
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan ServerFrame, sendBuffer),
		fields:  make(map[string]*suggest.Field),
	}
}

func (s *liveSession) run() {
	defer s.close()

	s.conn.SetReadLimit(64 << 10)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.wg.Add(1)
	go s.writePump()

	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("live session read failed", zap.Error(err))
			}
			return
		}
		s.handle(frame)
	}
}

func (s *liveSession) handle(frame ClientFrame) {
	name := strings.TrimSpace(frame.Field)
	if name == "" {
		s.send(ServerFrame{Type: FrameError, Error: "field is required", Kind: failure.KindValidation})
		return
	}

	switch frame.Type {
	case FrameInput:
		f, ok := s.field(name)
		if !ok {
			s.send(ServerFrame{Type: FrameError, Field: name, Error: "too many fields", Kind: failure.KindValidation})
			return
		}
		f.OnInputChange(frame.Text)

	case FrameSelect:
		if frame.Selection == nil {
			s.send(ServerFrame{Type: FrameError, Field: name, Error: "selection is required", Kind: failure.KindValidation})
			return
		}
		f, ok := s.field(name)
		if !ok {
			s.send(ServerFrame{Type: FrameError, Field: name, Error: "too many fields", Kind: failure.KindValidation})
			return
		}
		sel := *frame.Selection
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.resolve(f, sel)
		}()

	default:
		s.send(ServerFrame{Type: FrameError, Field: name, Error: "unknown frame type " + frame.Type, Kind: failure.KindValidation})
	}
}

func (s *liveSession) resolve(f *suggest.Field, sel locationDomain.Selection) {
	loc, err := f.Select(s.ctx, sel)
	if err != nil {
		if failure.IsCancelled(err) {
			return
		}
		s.send(ServerFrame{Type: FrameError, Field: f.Name(), Error: err.Error(), Kind: failure.KindOf(err)})
		return
	}
	s.send(ServerFrame{Type: FrameResolved, Field: f.Name(), Location: &loc})
}

// field returns the named field, creating it on first use.
func (s *liveSession) field(name string) (*suggest.Field, bool) {
	if f, ok := s.fields[name]; ok {
		return f, true
	}
	if len(s.fields) >= maxFieldsPerSession {
		return nil, false
	}

	f := suggest.NewField(s.ctx, name, s.handler.source, s.handler.debounce, s.handler.limit, s.logger)
	f.Subscribe(func(st suggest.State) {
		s.send(ServerFrame{Type: FrameSuggestions, Field: name, State: &st})
	})
	s.fields[name] = f
	return f, true
}

// send queues a frame for the writer. A client that stops draining its
// queue is disconnected instead of stalling the fields.
func (s *liveSession) send(frame ServerFrame) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	select {
	case s.out <- frame:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("live session send buffer full, closing")
		s.cancel()
		_ = s.conn.Close()
	}
}

// writePump owns every write on the connection, frames and pings alike.
func (s *liveSession) writePump() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("live session write failed", zap.Error(err))
				s.cancel()
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.cancel()
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *liveSession) close() {
	for _, f := range s.fields {
		f.Close()
	}
	s.cancel()
	s.wg.Wait()
	_ = s.conn.Close()
}
