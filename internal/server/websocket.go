package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/session"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

var errExpectedHello = errors.New("first message must be hello")

// conn is a tracked websocket client. Writes come from the read loop and
// from reload broadcasts, so they are serialised.
type conn struct {
	ws   *websocket.Conn
	deck string // file path of the deck being shown
	mu   sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) close() error {
	c.mu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	c.mu.Unlock()
	return c.ws.Close()
}

func (s *Server) sessionOptions() session.Options {
	return session.Options{
		StepSelector:  s.config.GetStepSelector(),
		KeysPerSecond: s.config.GetKeysPerSecond(),
		KeyBurst:      s.config.GetKeyBurst(),
		Recorder:      s.recorder,
		Presenter:     s.presenter,
		Logger:        s.log.Named("session"),
	}
}

// serveWebSocket runs one deck session per connection. The client names the
// deck with the deck query parameter and must open with a hello envelope
// carrying its current fragment.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("deck")
	route := s.Deck(name)
	if route == nil {
		writeJSONError(w, http.StatusNotFound, "unknown deck")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &conn{ws: ws, deck: route.FilePath}
	s.RegisterConnection(c)
	defer func() {
		s.UnregisterConnection(c)
		ws.Close()
	}()

	log := s.log.Named("ws").With(zap.String("deck", route.FilePath))
	var sess *session.Session
	defer func() {
		if sess != nil {
			sess.Close()
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		var env session.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug("malformed message", zap.Error(err))
			if err := c.writeJSON(session.NewErrorReply(err)); err != nil {
				return
			}
			continue
		}

		var reply *session.Reply
		switch {
		case sess == nil && env.Type != session.TypeHello:
			reply = session.NewErrorReply(errExpectedHello)
		case sess == nil:
			sess = session.New(route.Deck, env.Fragment, s.sessionOptions())
			log.Debug("session started", zap.String("session", sess.ID()), zap.String("fragment", env.Fragment))
			reply = sess.Start()
		default:
			reply, err = sess.Handle(env)
			if err != nil {
				reply = session.NewErrorReply(err)
			}
		}
		if reply == nil {
			continue
		}
		if err := c.writeJSON(reply); err != nil {
			log.Debug("write failed", zap.Error(err))
			return
		}
	}
}
