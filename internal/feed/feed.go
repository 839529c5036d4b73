package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Publisher pushes record change notifications to the feed. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(collection, id string, snapshot any) error
}

// Change is the wire shape of one feed message: which record changed, plus
// its full snapshot so consumers that only need the new state can skip the
// refetch.
type Change struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	TS         string          `json:"ts"`
	Snapshot   json.RawMessage `json:"snapshot"`
}

type Config struct {
	Port int
}

func DefaultConfig() Config {
	return Config{Port: 4222}
}

// Feed runs an in-process NATS server and holds the client connection used
// for publishing. Messages are fire-and-forget: the durable record of every
// mutation is the events table, the feed only wakes consumers up.
type Feed struct {
	server *server.Server
	nc     *nats.Conn
	Now    func() time.Time
}

// Start boots the embedded broker and connects to it. Port -1 picks a free
// port, which tests rely on.
func Start(cfg Config) (*Feed, error) {
	ns, err := server.NewServer(&server.Options{
		Port:  cfg.Port,
		NoLog: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready for connections")
	}
	nc, err := nats.Connect(ns.ClientURL(),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Printf("[feed] nats error: %v", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[feed] nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("[feed] nats reconnected")
		}),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to embedded nats: %w", err)
	}
	return &Feed{server: ns, nc: nc, Now: time.Now}, nil
}

// Publish marshals the snapshot into a Change and publishes it on the
// record's subject.
func (f *Feed) Publish(collection, id string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	change := Change{
		Collection: collection,
		ID:         id,
		TS:         f.Now().UTC().Format(time.RFC3339),
		Snapshot:   data,
	}
	msg, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.nc.Publish(Subject(collection, id), msg)
}

// Conn exposes the client connection for subscribers.
func (f *Feed) Conn() *nats.Conn {
	return f.nc
}

func (f *Feed) Shutdown() {
	if f.nc != nil {
		f.nc.Close()
	}
	if f.server != nil {
		f.server.Shutdown()
		f.server.WaitForShutdown()
	}
}
