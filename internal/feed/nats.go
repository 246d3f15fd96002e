package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"taskboard-cli/internal/model"
)

// Subject scheme for self-hosted deployments where the backend publishes row
// changes to NATS: board.<collection> for unfiltered topics, and
// board.tasks.<project_id> for the project-scoped task stream.
const natsSubjectPrefix = "board"

type natsMessage struct {
	Kind   Kind         `json:"kind"`
	Record model.Record `json:"record"`
}

// NATSTransport adapts a NATS connection to the feed Transport contract.
// Reconnect/backoff policy lives in the nats client options; a reconnect may
// replay messages, which downstream idempotent application absorbs.
type NATSTransport struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNATSTransport(url string, log *slog.Logger) (*NATSTransport, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(*nats.Conn) {
			log.Info("feed: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("feed: nats connect: %w", err)
	}
	return &NATSTransport{conn: conn, log: log}, nil
}

func natsSubject(t Topic) string {
	if t.Collection == model.Tasks && t.ProjectID != "" {
		return fmt.Sprintf("%s.%s.%s", natsSubjectPrefix, t.Collection, t.ProjectID)
	}
	return fmt.Sprintf("%s.%s", natsSubjectPrefix, t.Collection)
}

func (n *NATSTransport) Subscribe(_ context.Context, topic Topic, fn func(RawEvent)) (Subscription, error) {
	subject := natsSubject(topic)
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		var m natsMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			n.log.Warn("feed: dropping undecodable nats message", "subject", subject, "error", err)
			return
		}
		fn(RawEvent{Collection: topic.Collection, Kind: m.Kind, Record: m.Record})
	})
	if err != nil {
		return nil, fmt.Errorf("feed: subscribe %s: %w", subject, err)
	}
	return &natsSub{sub: sub}, nil
}

func (n *NATSTransport) Close() error {
	n.conn.Close()
	return nil
}

type natsSub struct {
	sub  *nats.Subscription
	once sync.Once
}

func (s *natsSub) Unsubscribe() error {
	var err error
	s.once.Do(func() { err = s.sub.Unsubscribe() })
	return err
}
