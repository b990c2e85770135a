// Package mqttfake is an in-memory mqtt.Client for tests. It records
// publishes and routes Deliver calls to the subscribed handlers.
package mqttfake

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is a completed mqtt.Token.
type Token struct {
	err  error
	done chan struct{}
}

// NewToken returns a token already completed with err.
func NewToken(err error) *Token {
	t := &Token{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{}          { return t.done }
func (t *Token) Error() error                   { return t.err }

// Published is one recorded publish.
type Published struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Client implements the mqtt.Client methods used in this module. Calling
// any other method panics.
type Client struct {
	mqtt.Client

	mu         sync.Mutex
	connected  bool
	published  []Published
	handlers   map[string]mqtt.MessageHandler
	PublishErr error
}

// NewClient returns a connected fake client.
func NewClient() *Client {
	return &Client{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return NewToken(c.PublishErr)
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Payload: data})
	return NewToken(nil)
}

func (c *Client) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = cb
	c.mu.Unlock()
	return NewToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.mu.Unlock()
	return NewToken(nil)
}

// Subscribed reports whether a handler is registered for topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

// Deliver hands payload to the handler subscribed on topic. It reports
// false when nothing is subscribed.
func (c *Client) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	cb, ok := c.handlers[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	cb(c, &Message{topic: topic, payload: payload})
	return true
}

// Published returns a copy of everything published so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Message is a received mqtt.Message.
type Message struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m *Message) Topic() string   { return m.topic }
func (m *Message) Payload() []byte { return m.payload }
func (m *Message) Qos() byte       { return 0 }
func (m *Message) Ack()            {}
