/******************************************************************************
 *
 *  Description :
 *
 *    Wire grammar of the signaling layer. All payloads are flat strings
 *    with colon/semicolon separated fields and no escaping; field values
 *    are validated against the separator characters before they ever
 *    reach an encoder.
 *
 *    Payloads are parsed into typed messages exactly once, at the
 *    subscription boundary. Everything downstream works with the typed
 *    forms.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"fmt"
	"strings"
)

// Protocol-level errors surfaced to the operator.
var (
	errMalformedMessage = errors.New("malformed message")
	errAlreadyExists    = errors.New("already exists")
	errNotFound         = errors.New("not found")
	errRequestNotFound  = errors.New("request not found")
	errAgentInitFailed  = errors.New("agent init failed")
	errPeerNotJoined    = errors.New("peer has not joined yet")
)

// Status is a user's presence state.
type Status string

const (
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

// Message keywords. The keyword is everything before the first colon.
const (
	kwUserRequest          = "USER_REQUEST"
	kwGroupRequest         = "GROUP_REQUEST"
	kwUserAccepted         = "USER_ACCEPTED"
	kwGroupAccepted        = "GROUP_ACCEPTED"
	kwUserRejected         = "USER_REJECTED"
	kwGroupRejected        = "GROUP_REJECTED"
	kwGroupCreated         = "GROUP_CREATED"
	kwUserRequestSent      = "USER_REQUEST_SENT"
	kwGroupRequestSent     = "GROUP_REQUEST_SENT"
	kwUserRequestAccepted  = "USER_REQUEST_ACCEPTED"
	kwGroupRequestAccepted = "GROUP_REQUEST_ACCEPTED"
	kwUserRequestRejected  = "USER_REQUEST_REJECTED"
	kwGroupRequestRejected = "GROUP_REQUEST_REJECTED"
)

// CtrlMsg is one typed control-channel or history message.
type CtrlMsg interface {
	Encode() string
}

// UserRequest solicits a 1:1 conversation with the control-channel owner.
type UserRequest struct {
	From string
}

// GroupRequest asks the group's leader to admit From.
type GroupRequest struct {
	Group string
	From  string
}

// UserAccepted tells the requester that Responder agreed to chat on Link.
type UserAccepted struct {
	Responder string
	Link      string
}

// GroupAccepted tells the requester it was admitted to Group.
type GroupAccepted struct {
	Group     string
	Responder string
	Link      string
}

// UserRejected tells the requester that Responder declined.
type UserRejected struct {
	Responder string
}

// GroupRejected tells the requester that the leader declined.
type GroupRejected struct {
	Group     string
	Responder string
}

// GroupCreated records group creation in the leader's history.
type GroupCreated struct {
	Group string
	Link  string
}

// UserRequestSent records an outbound 1:1 request in the sender's history.
type UserRequestSent struct {
	Target string
}

// GroupRequestSent records an outbound group request in the sender's history.
type GroupRequestSent struct {
	Group  string
	Leader string
}

// UserRequestAccepted is the sender-observed form of UserAccepted.
type UserRequestAccepted struct {
	Peer string
	Link string
}

// GroupRequestAccepted is the sender-observed form of GroupAccepted.
type GroupRequestAccepted struct {
	Group string
	Peer  string
	Link  string
}

// UserRequestRejected is the sender-observed form of UserRejected.
type UserRequestRejected struct {
	Peer string
}

// GroupRequestRejected is the sender-observed form of GroupRejected.
type GroupRequestRejected struct {
	Group string
	Peer  string
}

func (m UserRequest) Encode() string {
	return kwUserRequest + ":" + m.From
}

func (m GroupRequest) Encode() string {
	return kwGroupRequest + ":" + m.Group + ";" + m.From
}

func (m UserAccepted) Encode() string {
	return kwUserAccepted + ":" + m.Responder + ";" + m.Link
}

func (m GroupAccepted) Encode() string {
	return kwGroupAccepted + ":" + m.Group + ";" + m.Responder + ";" + m.Link
}

func (m UserRejected) Encode() string {
	return kwUserRejected + ":" + m.Responder
}

func (m GroupRejected) Encode() string {
	return kwGroupRejected + ":" + m.Group + ";" + m.Responder
}

func (m GroupCreated) Encode() string {
	return kwGroupCreated + ":" + m.Group + ";" + m.Link
}

func (m UserRequestSent) Encode() string {
	return kwUserRequestSent + ":" + m.Target
}

func (m GroupRequestSent) Encode() string {
	return kwGroupRequestSent + ":" + m.Group + ";" + m.Leader
}

func (m UserRequestAccepted) Encode() string {
	return kwUserRequestAccepted + ":" + m.Peer + ";" + m.Link
}

func (m GroupRequestAccepted) Encode() string {
	return kwGroupRequestAccepted + ":" + m.Group + ";" + m.Peer + ";" + m.Link
}

func (m UserRequestRejected) Encode() string {
	return kwUserRequestRejected + ":" + m.Peer
}

func (m GroupRequestRejected) Encode() string {
	return kwGroupRequestRejected + ":" + m.Group + ";" + m.Peer
}

// parseCtrl decodes one control or history payload. Payloads with an
// unknown keyword or missing fields fail with errMalformedMessage;
// callers drop those after a log line instead of crashing.
func parseCtrl(payload string) (CtrlMsg, error) {
	kw, rest, ok := strings.Cut(payload, ":")
	if !ok {
		return nil, fmt.Errorf("%w: no keyword in '%s'", errMalformedMessage, payload)
	}

	args := strings.Split(rest, ";")
	for _, a := range args {
		if a == "" {
			return nil, fmt.Errorf("%w: empty field in '%s'", errMalformedMessage, payload)
		}
	}

	bad := func() (CtrlMsg, error) {
		return nil, fmt.Errorf("%w: wrong field count in '%s'", errMalformedMessage, payload)
	}

	switch kw {
	case kwUserRequest:
		if len(args) != 1 {
			return bad()
		}
		return UserRequest{From: args[0]}, nil
	case kwGroupRequest:
		if len(args) != 2 {
			return bad()
		}
		return GroupRequest{Group: args[0], From: args[1]}, nil
	case kwUserAccepted:
		if len(args) != 2 {
			return bad()
		}
		return UserAccepted{Responder: args[0], Link: args[1]}, nil
	case kwGroupAccepted:
		if len(args) != 3 {
			return bad()
		}
		return GroupAccepted{Group: args[0], Responder: args[1], Link: args[2]}, nil
	case kwUserRejected:
		if len(args) != 1 {
			return bad()
		}
		return UserRejected{Responder: args[0]}, nil
	case kwGroupRejected:
		if len(args) != 2 {
			return bad()
		}
		return GroupRejected{Group: args[0], Responder: args[1]}, nil
	case kwGroupCreated:
		if len(args) != 2 {
			return bad()
		}
		return GroupCreated{Group: args[0], Link: args[1]}, nil
	case kwUserRequestSent:
		if len(args) != 1 {
			return bad()
		}
		return UserRequestSent{Target: args[0]}, nil
	case kwGroupRequestSent:
		if len(args) != 2 {
			return bad()
		}
		return GroupRequestSent{Group: args[0], Leader: args[1]}, nil
	case kwUserRequestAccepted:
		if len(args) != 2 {
			return bad()
		}
		return UserRequestAccepted{Peer: args[0], Link: args[1]}, nil
	case kwGroupRequestAccepted:
		if len(args) != 3 {
			return bad()
		}
		return GroupRequestAccepted{Group: args[0], Peer: args[1], Link: args[2]}, nil
	case kwUserRequestRejected:
		if len(args) != 1 {
			return bad()
		}
		return UserRequestRejected{Peer: args[0]}, nil
	case kwGroupRequestRejected:
		if len(args) != 2 {
			return bad()
		}
		return GroupRequestRejected{Group: args[0], Peer: args[1]}, nil
	}
	return nil, fmt.Errorf("%w: unknown keyword '%s'", errMalformedMessage, kw)
}

// historyEvent rewrites an inbound response into the sender-observed
// history form kept under the HISTORY sub-channel. Returns nil for
// messages that are not responses.
func historyEvent(msg CtrlMsg) CtrlMsg {
	switch m := msg.(type) {
	case UserAccepted:
		return UserRequestAccepted{Peer: m.Responder, Link: m.Link}
	case GroupAccepted:
		return GroupRequestAccepted{Group: m.Group, Peer: m.Responder, Link: m.Link}
	case UserRejected:
		return UserRequestRejected{Peer: m.Responder}
	case GroupRejected:
		return GroupRequestRejected{Group: m.Group, Peer: m.Responder}
	}
	return nil
}

// Presence is the retained payload under a user's presence topic.
type Presence struct {
	User   string
	Status Status
}

func (p Presence) Encode() string {
	return p.User + ":" + string(p.Status)
}

func parsePresence(payload string) (Presence, error) {
	user, status, ok := strings.Cut(payload, ":")
	if !ok || user == "" {
		return Presence{}, fmt.Errorf("%w: presence '%s'", errMalformedMessage, payload)
	}
	if s := Status(status); s == StatusOnline || s == StatusOffline {
		return Presence{User: user, Status: s}, nil
	}
	return Presence{}, fmt.Errorf("%w: presence status '%s'", errMalformedMessage, payload)
}

// GroupDesc is the retained full-state descriptor of a group. The
// member list always carries a trailing semicolon on the wire.
type GroupDesc struct {
	Name    string
	Leader  string
	Members []string
}

func (g GroupDesc) Encode() string {
	var b strings.Builder
	b.WriteString(g.Name)
	b.WriteByte(':')
	b.WriteString(g.Leader)
	b.WriteByte(':')
	for _, m := range g.Members {
		b.WriteString(m)
		b.WriteByte(';')
	}
	return b.String()
}

func parseGroupDesc(payload string) (GroupDesc, error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return GroupDesc{}, fmt.Errorf("%w: group descriptor '%s'", errMalformedMessage, payload)
	}

	var members []string
	for _, m := range strings.Split(parts[2], ";") {
		if m != "" {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return GroupDesc{}, fmt.Errorf("%w: group descriptor '%s' has no members", errMalformedMessage, payload)
	}
	return GroupDesc{Name: parts[0], Leader: parts[1], Members: members}, nil
}

// hasMember reports whether user is on the group's roster.
func (g GroupDesc) hasMember(user string) bool {
	for _, m := range g.Members {
		if m == user {
			return true
		}
	}
	return false
}
