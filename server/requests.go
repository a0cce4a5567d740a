/******************************************************************************
 *
 *  Description :
 *
 *    Request/response protocol. Issuing a request is a non-retained
 *    nudge at the target's control channel; the pending state lives in
 *    the retained REQUESTS mirror kept by the target's control agent.
 *    Resolution re-reads the mirror, answers the requester, appends a
 *    history event and tombstones the mirror entry.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/logs"
)

type protocol struct {
	conn broker.Conn
	// Local user on whose behalf requests are issued and resolved.
	user   string
	groups *groupDir
	wait   time.Duration
	now    func() time.Time
}

// appendHistory publishes a retained history event for the local user,
// keyed by its own payload.
func (p *protocol) appendHistory(event CtrlMsg) error {
	payload := event.Encode()
	return p.conn.Publish(historyTopic(p.user, payload), payload, true)
}

// RequestUser asks target for a 1:1 conversation.
func (p *protocol) RequestUser(target string) error {
	if err := validName(target); err != nil {
		return err
	}

	if err := p.conn.Publish(controlTopic(target), UserRequest{From: p.user}.Encode(), false); err != nil {
		return err
	}
	return p.appendHistory(UserRequestSent{Target: target})
}

// RequestGroup asks the group's leader for membership.
func (p *protocol) RequestGroup(group string) error {
	if err := validName(group); err != nil {
		return err
	}

	leader, err := p.groups.LeaderOf(group)
	if err != nil {
		return err
	}

	msg := GroupRequest{Group: group, From: p.user}
	if err := p.conn.Publish(controlTopic(leader), msg.Encode(), false); err != nil {
		return err
	}
	return p.appendHistory(GroupRequestSent{Group: group, Leader: leader})
}

// PendingRequests snapshots the local REQUESTS mirror. Resolved entries
// are tombstoned on the broker and never show up here.
func (p *protocol) PendingRequests() ([]CtrlMsg, error) {
	msgs, err := p.conn.Snapshot(requestMirrorFilter(p.user), p.wait)
	if err != nil {
		return nil, err
	}

	var pending []CtrlMsg
	for _, m := range msgs {
		if m.Payload == "" {
			continue
		}
		req, err := parseCtrl(m.Payload)
		if err != nil {
			logs.Warn.Printf("requests: dropping payload on %s: %s", m.Topic, err)
			continue
		}
		switch req.(type) {
		case UserRequest, GroupRequest:
			pending = append(pending, req)
		default:
			logs.Warn.Printf("requests: unexpected message kind mirrored on %s", m.Topic)
		}
	}
	return pending, nil
}

// pendingContains re-fetches the mirror and checks the exact request is
// still unresolved. Resolution acts only on current state: a request
// resolved elsewhere between fetch and resolve fails here instead of
// publishing a duplicate response.
func (p *protocol) pendingContains(req CtrlMsg) error {
	pending, err := p.PendingRequests()
	if err != nil {
		return err
	}
	for _, r := range pending {
		if r == req {
			return nil
		}
	}
	return fmt.Errorf("'%s': %w", req.Encode(), errRequestNotFound)
}

// tombstone clears a resolved request from the mirror by publishing an
// empty retained payload to its key.
func (p *protocol) tombstone(req CtrlMsg) error {
	return p.conn.Publish(requestMirrorTopic(p.user, req.Encode()), "", true)
}

// RespondUser resolves a pending 1:1 request from the named peer. On
// accept it returns the conversation link both parties converge on.
func (p *protocol) RespondUser(from string, accept bool) (string, error) {
	req := UserRequest{From: from}
	if err := p.pendingContains(req); err != nil {
		return "", err
	}

	if !accept {
		if err := p.conn.Publish(controlTopic(from), UserRejected{Responder: p.user}.Encode(), false); err != nil {
			return "", err
		}
		if err := p.appendHistory(UserRejected{Responder: from}); err != nil {
			return "", err
		}
		return "", p.tombstone(req)
	}

	link := userLink(from, p.user, p.now())

	// The sentinel goes out before the acceptance: the requester's agent
	// clears it on receipt, and per-topic ordering alone cannot stop a
	// late sentinel from undoing the clear.
	if err := p.conn.Publish(chatTopic(link), waitingSentinel, true); err != nil {
		return "", err
	}
	if err := p.conn.Publish(controlTopic(from), UserAccepted{Responder: p.user, Link: link}.Encode(), false); err != nil {
		return "", err
	}
	if err := p.appendHistory(UserAccepted{Responder: from, Link: link}); err != nil {
		return "", err
	}
	return link, p.tombstone(req)
}

// RespondGroup resolves a pending membership request for a group led by
// the local user. On accept the roster is grown first, then the
// requester is notified with the group's conversation link.
func (p *protocol) RespondGroup(group, from string, accept bool) (string, error) {
	req := GroupRequest{Group: group, From: from}
	if err := p.pendingContains(req); err != nil {
		return "", err
	}

	if !accept {
		if err := p.conn.Publish(controlTopic(from), GroupRejected{Group: group, Responder: p.user}.Encode(), false); err != nil {
			return "", err
		}
		if err := p.appendHistory(GroupRejected{Group: group, Responder: from}); err != nil {
			return "", err
		}
		return "", p.tombstone(req)
	}

	link, err := p.groupChatLink(group)
	if err != nil {
		return "", err
	}
	if err := p.groups.AddMember(group, from); err != nil {
		return "", err
	}
	msg := GroupAccepted{Group: group, Responder: p.user, Link: link}
	if err := p.conn.Publish(controlTopic(from), msg.Encode(), false); err != nil {
		return "", err
	}
	if err := p.appendHistory(GroupAccepted{Group: group, Responder: from, Link: link}); err != nil {
		return "", err
	}
	return link, p.tombstone(req)
}

// History snapshots the local HISTORY sub-channel.
func (p *protocol) History() ([]CtrlMsg, error) {
	msgs, err := p.conn.Snapshot(historyFilter(p.user), p.wait)
	if err != nil {
		return nil, err
	}

	var events []CtrlMsg
	for _, m := range msgs {
		if m.Payload == "" {
			continue
		}
		ev, err := parseCtrl(m.Payload)
		if err != nil {
			logs.Warn.Printf("history: dropping payload on %s: %s", m.Topic, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// groupChatLink recovers the conversation link recorded when the local
// user created the group.
func (p *protocol) groupChatLink(group string) (string, error) {
	events, err := p.History()
	if err != nil {
		return "", err
	}
	for _, ev := range events {
		if created, ok := ev.(GroupCreated); ok && created.Group == group {
			return created.Link, nil
		}
	}
	return "", fmt.Errorf("no creation record for group '%s': %w", group, errNotFound)
}
