package main

import (
	"errors"
	"testing"
	"time"
)

func TestValidName(t *testing.T) {
	for _, name := range []string{"alice", "Team", "bob42", "under_score", "dot.ted"} {
		if err := validName(name); err != nil {
			t.Errorf("validName(%q): %s", name, err)
		}
	}

	bad := []string{"", " ", "\t", "a:b", "a/b", "a+b", "a#b", "a;b", "a|b"}
	for _, name := range bad {
		if err := validName(name); !errors.Is(err, errMalformedMessage) {
			t.Errorf("validName(%q)=%v, want errMalformedMessage", name, err)
		}
	}
}

func TestTopicNames(t *testing.T) {
	cases := []struct{ got, want string }{
		{presenceTopic("alice"), "USERS/alice"},
		{presenceFilter(), "USERS/+"},
		{groupTopic("Team"), "GROUPS/Team"},
		{groupFilter(), "GROUPS/+"},
		{controlTopic("alice"), "alice_Control"},
		{requestMirrorTopic("alice", "USER_REQUEST:bob"), "alice_Control/REQUESTS/USER_REQUEST:bob"},
		{requestMirrorFilter("alice"), "alice_Control/REQUESTS/#"},
		{historyTopic("alice", "USER_REQUEST_SENT:bob"), "alice_Control/HISTORY/USER_REQUEST_SENT:bob"},
		{historyFilter("alice"), "alice_Control/HISTORY/#"},
		{chatTopic("alice_bob|1700000000"), "CHATS/alice_bob|1700000000"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}

func TestLinks(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	// Requester first, responder second.
	if got := userLink("alice", "bob", ts); got != "alice_bob|1700000000" {
		t.Errorf("userLink=%q", got)
	}
	if got := groupLink("Team", ts); got != "Team|1700000000" {
		t.Errorf("groupLink=%q", got)
	}
}
