/******************************************************************************
 *
 *  Description :
 *
 *    Control agent: the per-user long-lived subscriber on <user>_Control.
 *    Inbound requests are mirrored as retained messages under the
 *    REQUESTS sub-channel so they become individually addressable and
 *    clearable. Inbound responses are rewritten into their
 *    sender-observed history form under HISTORY; acceptances also hand
 *    the conversation link to the confirmation queue for the shell to
 *    pick up.
 *
 *    Connection lifecycle: Connecting -> Subscribed -> Listening, with
 *    reconnection handled by the transport below a startup retry
 *    ceiling, and a terminal Disconnected state entered on shutdown or
 *    unrecoverable subscribe failure.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/logs"
)

type agentState int

const (
	agentConnecting agentState = iota
	agentSubscribed
	agentListening
	agentDisconnected
)

const (
	// Initial connect attempts before the agent gives up for good.
	agentConnectAttempts = 5
	agentConnectRetry    = 2 * time.Second
	// How often the listening loop checks the liveness flag.
	agentPollStep = 100 * time.Millisecond
)

type agent struct {
	app  *App
	user string
	// Dedicated connection with a persistent broker session, so control
	// messages sent while the agent reconnects are queued, not lost.
	conn  broker.Conn
	state agentState
}

// newAgent dials the agent's dedicated connection. Connect failures are
// retried up to the ceiling; running out of attempts is fatal to the
// agent and reported to the caller that spawned it.
func newAgent(a *App) (*agent, error) {
	ag := &agent{app: a, user: a.user, state: agentConnecting}

	var err error
	for attempt := 1; attempt <= agentConnectAttempts; attempt++ {
		ag.conn, err = broker.Dial(broker.Config{
			Address:      a.cfg.BrokerAddr,
			ClientID:     ag.user,
			CleanSession: false,
			OnConnectionLost: func(cause error) {
				logs.Warn.Println("agent: connection lost, reconnecting:", cause)
				a.statsInc("AgentReconnects", 1)
			},
		})
		if err == nil {
			return ag, nil
		}
		logs.Warn.Printf("agent: connect attempt %d/%d failed: %s", attempt, agentConnectAttempts, err)
		if attempt < agentConnectAttempts && a.alive() {
			time.Sleep(agentConnectRetry)
		}
	}
	return nil, fmt.Errorf("%w: %s", errAgentInitFailed, err)
}

// run subscribes to the control channel and listens until the liveness
// flag clears, then unsubscribes and disconnects cleanly.
func (ag *agent) run() {
	defer ag.app.wg.Done()

	topic := controlTopic(ag.user)
	if err := ag.conn.Subscribe(topic, ag.handle); err != nil {
		logs.Err.Println("agent: subscribe failed:", err)
		ag.conn.Close()
		ag.state = agentDisconnected
		return
	}
	ag.state = agentSubscribed
	logs.Info.Printf("agent: listening on '%s'", topic)
	ag.state = agentListening

	for ag.app.alive() {
		time.Sleep(agentPollStep)
	}

	if err := ag.conn.Unsubscribe(topic); err != nil {
		logs.Warn.Println("agent: unsubscribe failed:", err)
	}
	ag.conn.Close()
	ag.state = agentDisconnected
	logs.Info.Println("agent: stopped")
}

// handle routes one inbound control message.
func (ag *agent) handle(msg broker.Message) {
	if msg.Payload == "" {
		return
	}

	m, err := parseCtrl(msg.Payload)
	if err != nil {
		logs.Warn.Printf("agent: dropping inbound payload: %s", err)
		ag.app.statsInc("MalformedDropped", 1)
		return
	}
	ag.app.statsInc("CtrlMessagesRouted", 1)

	switch m.(type) {
	case UserRequest, GroupRequest:
		ag.mirrorRequest(msg.Payload)
		return
	}

	event := historyEvent(m)
	if event == nil {
		// Requests and responses are the only traffic expected here.
		logs.Warn.Printf("agent: unexpected message kind on control channel: %s", msg.Payload)
		ag.app.statsInc("MalformedDropped", 1)
		return
	}
	ag.recordResponse(event)

	switch acc := m.(type) {
	case UserAccepted:
		ag.confirmChat(acc.Link, true)
	case GroupAccepted:
		ag.confirmChat(acc.Link, false)
	}
}

// mirrorRequest republishes an inbound request verbatim as a retained
// message keyed by its own payload. Re-sent identical requests overwrite
// the same key, which is what makes request issuance idempotent.
func (ag *agent) mirrorRequest(payload string) {
	topic := requestMirrorTopic(ag.user, payload)
	ag.app.pool.Schedule(func() {
		if err := ag.conn.Publish(topic, payload, true); err != nil {
			logs.Err.Println("agent: request mirror publish failed:", err)
			return
		}
		ag.app.statsInc("RequestsMirrored", 1)
	})
}

// recordResponse appends the rewritten response to the local history.
func (ag *agent) recordResponse(event CtrlMsg) {
	payload := event.Encode()
	topic := historyTopic(ag.user, payload)
	ag.app.pool.Schedule(func() {
		if err := ag.conn.Publish(topic, payload, true); err != nil {
			logs.Err.Println("agent: history publish failed:", err)
			return
		}
		ag.app.statsInc("HistoryEvents", 1)
	})
}

// confirmChat hands an accepted conversation link to the confirmation
// queue. For 1:1 chats it also clears the waiting sentinel the acceptor
// left on the chat topic, announcing that this side has joined.
func (ag *agent) confirmChat(link string, direct bool) {
	ag.app.confirmations.Insert(link)
	if !direct {
		return
	}
	topic := chatTopic(link)
	ag.app.pool.Schedule(func() {
		if err := ag.conn.Publish(topic, "", true); err != nil {
			logs.Err.Println("agent: sentinel clear failed:", err)
		}
	})
}
