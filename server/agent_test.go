package main

import (
	"testing"
	"time"

	"github.com/chatmq/chatmq/server/broker"
)

func TestAgentDropsMalformed(t *testing.T) {
	fb := newFakeBroker()
	app := newTestApp(t, fb, "bob")
	ag := startTestAgent(t, app)

	before := fb.publishCount()
	ag.handle(broker.Message{Topic: controlTopic("bob"), Payload: "NOT_A_KEYWORD:whatever"})
	ag.handle(broker.Message{Topic: controlTopic("bob"), Payload: "garbage"})
	ag.handle(broker.Message{Topic: controlTopic("bob"), Payload: ""})

	// Give the pool a moment to run anything wrongly scheduled.
	time.Sleep(50 * time.Millisecond)
	if app.confirmations.Len() != 0 {
		t.Errorf("dropped messages queued a confirmation")
	}
	if fb.publishCount() != before {
		t.Errorf("dropped messages still caused publishes")
	}
}

func TestAgentDropsNonControlKinds(t *testing.T) {
	fb := newFakeBroker()
	app := newTestApp(t, fb, "bob")
	ag := startTestAgent(t, app)

	// History-only forms have no business on the live control channel.
	before := fb.publishCount()
	ag.handle(broker.Message{Topic: controlTopic("bob"), Payload: "USER_REQUEST_SENT:alice"})
	ag.handle(broker.Message{Topic: controlTopic("bob"), Payload: "GROUP_CREATED:Team;Team|1700000000"})
	if fb.publishCount() != before {
		t.Errorf("non-control kinds caused publishes")
	}
}

func TestAgentMirrorsBothRequestKinds(t *testing.T) {
	fb := newFakeBroker()
	app := newTestApp(t, fb, "carol")
	ag := startTestAgent(t, app)

	ag.handle(broker.Message{Topic: controlTopic("carol"), Payload: "USER_REQUEST:alice"})
	ag.handle(broker.Message{Topic: controlTopic("carol"), Payload: "GROUP_REQUEST:Team;alice"})

	waitFor(t, "user request mirror", func() bool {
		p, ok := fb.retainedAt(requestMirrorTopic("carol", "USER_REQUEST:alice"))
		return ok && p == "USER_REQUEST:alice"
	})
	waitFor(t, "group request mirror", func() bool {
		p, ok := fb.retainedAt(requestMirrorTopic("carol", "GROUP_REQUEST:Team;alice"))
		return ok && p == "GROUP_REQUEST:Team;alice"
	})
}

func TestAgentRewritesRejections(t *testing.T) {
	fb := newFakeBroker()
	app := newTestApp(t, fb, "alice")
	ag := startTestAgent(t, app)

	ag.handle(broker.Message{Topic: controlTopic("alice"), Payload: "USER_REJECTED:bob"})
	ag.handle(broker.Message{Topic: controlTopic("alice"), Payload: "GROUP_REJECTED:Team;carol"})

	waitFor(t, "user rejection history", func() bool {
		_, ok := fb.retainedAt(historyTopic("alice", "USER_REQUEST_REJECTED:bob"))
		return ok
	})
	waitFor(t, "group rejection history", func() bool {
		_, ok := fb.retainedAt(historyTopic("alice", "GROUP_REQUEST_REJECTED:Team;carol"))
		return ok
	})
	// Rejections never queue a conversation.
	if app.confirmations.Len() != 0 {
		t.Errorf("rejection queued a confirmation")
	}
}
