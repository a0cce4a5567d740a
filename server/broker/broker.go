/******************************************************************************
 *
 *  Description :
 *    Thin wrapper around the paho MQTT client. Exposes the few transport
 *    operations the signaling layer needs: publish with optional retain,
 *    wildcard subscriptions, and bounded-timeout snapshots of retained
 *    messages. Any error returned from this package is a transport
 *    failure; protocol-level errors never originate here.
 *
 *****************************************************************************/
package broker

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// All publishes and subscriptions use exactly-once delivery, same as the
// rest of the deployed fleet. Mixed QoS would break request mirroring.
const Qos byte = 2

// How long a snapshot keeps collecting after the last retained message.
// Retained messages arrive in a single burst right after subscribing, so
// a short quiet period is enough to detect the end of the burst.
const snapshotSettle = 300 * time.Millisecond

var ErrConnectTimeout = errors.New("broker: connect timed out")

// Message is a single inbound or retained payload.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// Handler consumes inbound messages of one subscription.
type Handler func(msg Message)

// Conn is a single connection handle to the broker. The protocol and
// directory layers depend on this interface, not on the MQTT client.
type Conn interface {
	// Publish sends a payload, optionally asking the broker to retain it.
	// An empty retained payload clears the retained message on the topic.
	Publish(topic, payload string, retained bool) error
	// Subscribe opens a persistent subscription on a topic filter.
	Subscribe(filter string, h Handler) error
	// Unsubscribe drops a subscription previously opened by Subscribe.
	Unsubscribe(filter string) error
	// Snapshot collects the retained messages currently stored under a
	// topic filter. It waits at most `wait` for the first message and a
	// short settle period after each one. An empty result is not an
	// error: it means the broker holds nothing under the filter yet.
	Snapshot(filter string, wait time.Duration) ([]Message, error)
	// Close disconnects from the broker, flushing in-flight messages.
	Close()
}

// Config collects connection parameters for Dial.
type Config struct {
	// Broker address, e.g. "tcp://localhost:1883".
	Address string
	// Client id presented to the broker. Must be process-unique; see
	// ClientID for generating throwaway ids.
	ClientID string
	// CleanSession false keeps the broker-side session (and queued QoS
	// messages) across reconnects. Control agents want that; snapshot
	// and chat connections do not.
	CleanSession bool
	// Bound on connect and per-operation waits. Zero means 10 seconds,
	// the timeout the deployed clients use.
	Timeout time.Duration
	// Called after the client loses (and starts re-establishing) the
	// connection. Optional.
	OnConnectionLost func(err error)
}

type conn struct {
	cli     mqtt.Client
	timeout time.Duration
}

// Dial connects a new client to the broker. The connection automatically
// re-establishes itself after a mid-life loss; only the initial connect
// is reported as an error.
func Dial(cfg Config) (Conn, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Address).
		SetClientID(cfg.ClientID).
		SetCleanSession(cfg.CleanSession).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(true)

	if cfg.OnConnectionLost != nil {
		lost := cfg.OnConnectionLost
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			lost(err)
		})
	}

	c := &conn{cli: mqtt.NewClient(opts), timeout: cfg.Timeout}

	token := c.cli.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker: connect %s: %w", cfg.Address, err)
	}
	return c, nil
}

func (c *conn) Publish(topic, payload string, retained bool) error {
	token := c.cli.Publish(topic, Qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("broker: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: publish to %s: %w", topic, err)
	}
	return nil
}

func (c *conn) Subscribe(filter string, h Handler) error {
	token := c.cli.Subscribe(filter, Qos, func(_ mqtt.Client, m mqtt.Message) {
		h(Message{Topic: m.Topic(), Payload: string(m.Payload()), Retained: m.Retained()})
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("broker: subscribe to %s timed out", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: subscribe to %s: %w", filter, err)
	}
	return nil
}

func (c *conn) Unsubscribe(filter string) error {
	token := c.cli.Unsubscribe(filter)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("broker: unsubscribe from %s timed out", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: unsubscribe from %s: %w", filter, err)
	}
	return nil
}

func (c *conn) Snapshot(filter string, wait time.Duration) ([]Message, error) {
	inbox := make(chan Message, 64)
	err := c.Subscribe(filter, func(msg Message) {
		select {
		case inbox <- msg:
		default:
			// Snapshot overflow; the directory will re-fetch.
		}
	})
	if err != nil {
		return nil, err
	}
	defer c.Unsubscribe(filter)

	var msgs []Message
	limit := time.After(wait)
	for {
		var quiet <-chan time.Time
		if len(msgs) > 0 {
			quiet = time.After(snapshotSettle)
		}
		select {
		case m := <-inbox:
			msgs = append(msgs, m)
		case <-quiet:
			return msgs, nil
		case <-limit:
			return msgs, nil
		}
	}
}

func (c *conn) Close() {
	// Quiesce for 250ms to let in-flight QoS-2 flows complete.
	c.cli.Disconnect(250)
}
