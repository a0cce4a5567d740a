package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPresenceSetAndList(t *testing.T) {
	fb := newFakeBroker()
	pd := &presenceDir{conn: fb, wait: 0}

	if err := pd.SetStatus("bob", StatusOnline); err != nil {
		t.Fatalf("SetStatus: %s", err)
	}
	if err := pd.SetStatus("alice", StatusOnline); err != nil {
		t.Fatalf("SetStatus: %s", err)
	}
	if err := pd.SetStatus("carol", StatusOffline); err != nil {
		t.Fatalf("SetStatus: %s", err)
	}
	// Last value wins.
	if err := pd.SetStatus("bob", StatusOffline); err != nil {
		t.Fatalf("SetStatus: %s", err)
	}

	entries, err := pd.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %s", err)
	}
	want := []PresenceEntry{
		{User: "alice", Status: StatusOnline},
		{User: "bob", Status: StatusOffline},
		{User: "carol", Status: StatusOffline},
	}
	if !cmp.Equal(entries, want) {
		t.Errorf("ListUsers mismatch:\n%s", cmp.Diff(want, entries))
	}
}

func TestPresenceEmptyDirectory(t *testing.T) {
	pd := &presenceDir{conn: newFakeBroker(), wait: 0}
	entries, err := pd.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %s", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListUsers on empty directory: %v", entries)
	}
}

func TestPresenceInvalidName(t *testing.T) {
	fb := newFakeBroker()
	pd := &presenceDir{conn: fb, wait: 0}
	if err := pd.SetStatus("al:ice", StatusOnline); !errors.Is(err, errMalformedMessage) {
		t.Fatalf("SetStatus with bad name: %v, want errMalformedMessage", err)
	}
	if n := fb.publishCount(); n != 0 {
		t.Errorf("rejected name still published %d messages", n)
	}
}

func TestOnlineUsersExcludesSelfAndOffline(t *testing.T) {
	fb := newFakeBroker()
	pd := &presenceDir{conn: fb, wait: 0}
	pd.SetStatus("alice", StatusOnline)
	pd.SetStatus("bob", StatusOnline)
	pd.SetStatus("carol", StatusOffline)

	users, err := pd.OnlineUsers("alice")
	if err != nil {
		t.Fatalf("OnlineUsers: %s", err)
	}
	if !cmp.Equal(users, []string{"bob"}) {
		t.Errorf("OnlineUsers=%v, want [bob]", users)
	}
}

func TestPresenceHeartbeatPublishesOnline(t *testing.T) {
	fb := newFakeBroker()
	app := newTestApp(t, fb, "alice")

	app.wg.Add(1)
	go presenceHeartbeat(app)

	waitFor(t, "online marker", func() bool {
		p, ok := fb.retainedAt(presenceTopic("alice"))
		return ok && p == "alice:Online"
	})

	app.shutdown()
	app.wg.Wait()
}

func TestListUsersDropsMalformed(t *testing.T) {
	fb := newFakeBroker()
	fb.Publish("USERS/mallory", "garbage-without-colon", true)
	pd := &presenceDir{conn: fb, wait: 0}
	pd.SetStatus("alice", StatusOnline)

	entries, err := pd.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %s", err)
	}
	want := []PresenceEntry{{User: "alice", Status: StatusOnline}}
	if !cmp.Equal(entries, want) {
		t.Errorf("ListUsers mismatch:\n%s", cmp.Diff(want, entries))
	}
}
