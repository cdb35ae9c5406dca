// Package activity publishes room lifecycle events to an external feed.
//
// Events are recorded without blocking the caller and handed to a Publisher
// by a single background goroutine. When the buffer is full the event is
// dropped and counted.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind names a lifecycle transition.
type Kind string

const (
	RoomCreated  Kind = "room_created"
	MemberJoined Kind = "member_joined"
	MemberLeft   Kind = "member_left"
	RoomClosed   Kind = "room_closed"
)

// Event is one entry of the activity feed.
type Event struct {
	Kind     Kind      `json:"kind"`
	RoomID   string    `json:"room_id"`
	ConnID   string    `json:"conn_id,omitempty"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal activity event: %w", err)
	}
	return b, nil
}

// Recorder accepts events without blocking.
type Recorder interface {
	Record(ev Event)
}

// Publisher delivers events to a sink. Publish may block up to ctx.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(Event) {}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }

// Sink kinds accepted by SinkConfig.Kind.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkRedis = "redis"
)

// ErrUnknownSink is returned by NewPublisher for an unsupported sink kind.
var ErrUnknownSink = errors.New("activity: unknown sink")

// SinkConfig selects and configures a Publisher.
type SinkConfig struct {
	Kind         string
	KafkaBrokers []string
	KafkaTopic   string
	RedisAddr    string
	RedisDB      int
	RedisChannel string
}

// NewPublisher builds the publisher named by cfg.Kind. An empty kind means
// SinkNone.
func NewPublisher(ctx context.Context, cfg SinkConfig) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", SinkNone:
		return Nop{}, nil
	case SinkKafka:
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return nil, fmt.Errorf("kafka sink: brokers and topic are required")
		}
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case SinkRedis:
		if cfg.RedisAddr == "" || cfg.RedisChannel == "" {
			return nil, fmt.Errorf("redis sink: addr and channel are required")
		}
		return NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisChannel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Kind)
	}
}
