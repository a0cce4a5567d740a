package main

import (
	"strings"
	"testing"
)

func TestShellDirectoryFlow(t *testing.T) {
	fb := newFakeBroker()
	carol := newTestApp(t, fb, "carol")
	startTestAgent(t, carol)

	pd := &presenceDir{conn: fb, wait: 0}
	pd.SetStatus("alice", StatusOnline)
	pd.SetStatus("carol", StatusOnline)

	// List users, create a group, list groups, quit.
	script := "1\n3\nTeam\n2\n0\n"
	var out strings.Builder
	runShell(carol, strings.NewReader(script), &out)

	got := out.String()
	for _, want := range []string{
		"alice | Online",
		"Group 'Team' created, chat 'Team|1700000000'.",
		"Leader: carol",
		"Members: carol",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("shell output missing %q\n--- output ---\n%s", want, got)
		}
	}

	if desc, _ := fb.retainedAt(groupTopic("Team")); desc != "Team:carol:carol;" {
		t.Errorf("descriptor=%q", desc)
	}
}

func TestShellRespondToRequest(t *testing.T) {
	fb := newFakeBroker()
	alice := newTestApp(t, fb, "alice")
	bob := newTestApp(t, fb, "bob")
	startTestAgent(t, alice)
	startTestAgent(t, bob)

	if err := alice.proto.RequestUser("bob"); err != nil {
		t.Fatalf("RequestUser: %s", err)
	}
	waitFor(t, "request mirror", func() bool {
		_, ok := fb.retainedAt(requestMirrorTopic("bob", "USER_REQUEST:alice"))
		return ok
	})

	// Pending requests, pick the first, accept, quit.
	script := "6\n1\ny\n0\n"
	var out strings.Builder
	runShell(bob, strings.NewReader(script), &out)

	got := out.String()
	if !strings.Contains(got, "chat request from 'alice'") {
		t.Errorf("pending request not listed:\n%s", got)
	}
	if !strings.Contains(got, "Accepted, chat 'alice_bob|1700000000'.") {
		t.Errorf("acceptance not reported:\n%s", got)
	}
	if _, ok := fb.retainedAt(requestMirrorTopic("bob", "USER_REQUEST:alice")); ok {
		t.Errorf("mirror entry survived resolution")
	}
}

func TestShellReportsErrors(t *testing.T) {
	fb := newFakeBroker()
	alice := newTestApp(t, fb, "alice")
	startTestAgent(t, alice)

	// Joining an unknown group surfaces as a status line, not a crash.
	script := "5\nNoSuch\n0\n"
	var out strings.Builder
	runShell(alice, strings.NewReader(script), &out)

	if !strings.Contains(out.String(), "not found") {
		t.Errorf("missing error report:\n%s", out.String())
	}
}

func TestDescribeCtrl(t *testing.T) {
	cases := []struct {
		msg  CtrlMsg
		want string
	}{
		{UserRequest{From: "alice"}, "chat request from 'alice'"},
		{GroupRequest{Group: "Team", From: "alice"}, "'alice' asks to join group 'Team'"},
		{UserRequestRejected{Peer: "bob"}, "'bob' rejected your chat request"},
		{GroupCreated{Group: "Team", Link: "Team|1"}, "created group 'Team' (chat 'Team|1')"},
	}
	for _, tc := range cases {
		if got := describeCtrl(tc.msg); got != tc.want {
			t.Errorf("describeCtrl(%#v)=%q, want %q", tc.msg, got, tc.want)
		}
	}
}
