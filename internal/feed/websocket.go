package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"taskboard-cli/internal/model"
)

// wsFrame is both the control frame we send and the data frame the realtime
// endpoint pushes. Control frames carry Action; data frames carry Kind+Record.
type wsFrame struct {
	Action string       `json:"action,omitempty"` // subscribe|unsubscribe
	Topic  string       `json:"topic"`
	Ref    int          `json:"ref,omitempty"`
	Kind   Kind         `json:"kind,omitempty"`
	Record model.Record `json:"record,omitempty"`
}

// WebsocketTransport multiplexes all topics over one socket to the backend's
// realtime endpoint. The socket is dialed on first subscribe. There is no
// automatic redial: on read failure the transport closes and surfaces nothing.
// Downstream state stays valid because event application is idempotent, so a
// caller can build a fresh transport and resubscribe.
type WebsocketTransport struct {
	endpoint string
	log      *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	handlers map[string]map[int]*wsSub
	nextRef  int
	closed   bool
}

// NewWebsocketTransport builds a transport for the realtime endpoint derived
// from the gateway base URL (http(s) -> ws(s), path /realtime/v1/websocket).
func NewWebsocketTransport(baseURL, apiKey string, log *slog.Logger) (*WebsocketTransport, error) {
	if log == nil {
		log = slog.Default()
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("feed: bad base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := u.Query()
	q.Set("apikey", apiKey)
	u.RawQuery = q.Encode()
	return &WebsocketTransport{
		endpoint: u.String(),
		log:      log,
		handlers: map[string]map[int]*wsSub{},
	}, nil
}

func (w *WebsocketTransport) ensureConnLocked(ctx context.Context) error {
	if w.closed {
		return fmt.Errorf("feed: transport closed")
	}
	if w.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}
	w.conn = conn
	go w.readLoop(conn)
	return nil
}

func (w *WebsocketTransport) writeFrame(f wsFrame) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	return conn.WriteJSON(f)
}

func (w *WebsocketTransport) Subscribe(ctx context.Context, topic Topic, fn func(RawEvent)) (Subscription, error) {
	w.mu.Lock()
	if err := w.ensureConnLocked(ctx); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.nextRef++
	sub := &wsSub{transport: w, topic: topic, ref: w.nextRef, fn: fn}
	key := topic.String()
	if w.handlers[key] == nil {
		w.handlers[key] = map[int]*wsSub{}
	}
	w.handlers[key][sub.ref] = sub
	w.mu.Unlock()

	if err := w.writeFrame(wsFrame{Action: "subscribe", Topic: key, Ref: sub.ref}); err != nil {
		w.mu.Lock()
		delete(w.handlers[key], sub.ref)
		w.mu.Unlock()
		return nil, fmt.Errorf("feed: subscribe %s: %w", key, err)
	}
	return sub, nil
}

func (w *WebsocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			w.mu.Lock()
			closed := w.closed
			if w.conn == conn {
				w.conn = nil
			}
			w.mu.Unlock()
			if !closed {
				w.log.Warn("feed: websocket read failed", "error", err)
			}
			return
		}
		if f.Action != "" || f.Kind == "" {
			continue // control echo or heartbeat
		}
		collection := model.Collection(f.Topic)
		if i := strings.IndexByte(f.Topic, ':'); i >= 0 {
			collection = model.Collection(f.Topic[:i])
		}
		raw := RawEvent{Collection: collection, Kind: f.Kind, Record: f.Record}

		w.mu.Lock()
		subs := make([]*wsSub, 0, len(w.handlers[f.Topic]))
		for _, s := range w.handlers[f.Topic] {
			subs = append(subs, s)
		}
		w.mu.Unlock()
		for _, s := range subs {
			s.fn(raw)
		}
	}
}

func (w *WebsocketTransport) Close() error {
	w.mu.Lock()
	w.closed = true
	conn := w.conn
	w.conn = nil
	w.handlers = map[string]map[int]*wsSub{}
	w.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

type wsSub struct {
	transport *WebsocketTransport
	topic     Topic
	ref       int
	fn        func(RawEvent)
	once      sync.Once
}

func (s *wsSub) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		key := s.topic.String()
		s.transport.mu.Lock()
		if m := s.transport.handlers[key]; m != nil {
			delete(m, s.ref)
			if len(m) == 0 {
				delete(s.transport.handlers, key)
			}
		}
		connected := s.transport.conn != nil
		s.transport.mu.Unlock()
		if connected {
			err = s.transport.writeFrame(wsFrame{Action: "unsubscribe", Topic: key, Ref: s.ref})
		}
	})
	return err
}
