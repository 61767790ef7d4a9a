package mq

import (
	"context"
)

/* ========================================================================
 * Message queue abstraction
 * ========================================================================
 * Producers publish append-only event streams (audit records). Brokers
 * register a factory under their Type; Kafka is the only one shipped.
 * ======================================================================== */

// Producer publishes messages. Implementations are safe for concurrent use.
type Producer interface {
	// SendSync blocks until the broker acknowledges the message.
	SendSync(ctx context.Context, msg *Message) (*SendResult, error)
	Close() error
}

// Message is broker-neutral.
type Message struct {
	Topic   string
	Body    []byte
	Key     string            // partitioning key
	Headers map[string]string // record headers
}

func NewMessage(topic string, body []byte) *Message {
	return &Message{Topic: topic, Body: body}
}

func (m *Message) WithKey(key string) *Message {
	m.Key = key
	return m
}

func (m *Message) WithHeader(key, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
	return m
}

type SendResult struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Type names a broker implementation.
type Type string

const (
	TypeNone  Type = "none"
	TypeKafka Type = "kafka"
)
