package broker

import "testing"

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"USERS/+", "USERS/alice", true},
		{"USERS/+", "USERS/alice/extra", false},
		{"USERS/+", "GROUPS/alice", false},
		{"alice_Control", "alice_Control", true},
		{"alice_Control", "bob_Control", false},
		{"alice_Control/REQUESTS/#", "alice_Control/REQUESTS/USER_REQUEST:bob", true},
		{"alice_Control/REQUESTS/#", "alice_Control/HISTORY/USER_REQUEST_SENT:bob", false},
		{"CHATS/alice_bob|123", "CHATS/alice_bob|123", true},
		{"#", "anything/at/all", true},
		{"GROUPS/+", "GROUPS", false},
	}

	for _, tc := range cases {
		if got := MatchTopic(tc.filter, tc.topic); got != tc.want {
			t.Errorf("MatchTopic(%q, %q): expected %v, got %v", tc.filter, tc.topic, got, tc.want)
		}
	}
}
