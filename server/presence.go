/******************************************************************************
 *
 *  Description :
 *
 *    Presence directory: retained Online/Offline markers under USERS/.
 *    Reads are best-effort snapshots of the broker's retained state,
 *    not strongly consistent queries. A client that crashes without
 *    publishing Offline leaves a stale Online marker behind; that is a
 *    known limitation of retained presence, not something this layer
 *    tries to repair.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"sort"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/logs"
)

// PresenceEntry is one user's last published status.
type PresenceEntry struct {
	User   string
	Status Status
}

type presenceDir struct {
	conn broker.Conn
	// Bound on how long a snapshot fetch may poll for retained messages.
	wait time.Duration
}

// SetStatus publishes a retained presence marker, overwriting the
// previous one.
func (pd *presenceDir) SetStatus(user string, status Status) error {
	if err := validName(user); err != nil {
		return err
	}
	return pd.conn.Publish(presenceTopic(user), Presence{User: user, Status: status}.Encode(), true)
}

// ListUsers fetches a snapshot of all retained presence markers. An
// empty result means the broker reported nothing within the window.
func (pd *presenceDir) ListUsers() ([]PresenceEntry, error) {
	msgs, err := pd.conn.Snapshot(presenceFilter(), pd.wait)
	if err != nil {
		return nil, err
	}

	var entries []PresenceEntry
	for _, m := range msgs {
		p, err := parsePresence(m.Payload)
		if err != nil {
			logs.Warn.Printf("presence: dropping payload on %s: %s", m.Topic, err)
			continue
		}
		entries = append(entries, PresenceEntry{User: p.User, Status: p.Status})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].User < entries[j].User })
	return entries, nil
}

// OnlineUsers filters the snapshot down to online peers, excluding self.
func (pd *presenceDir) OnlineUsers(self string) ([]string, error) {
	entries, err := pd.ListUsers()
	if err != nil {
		return nil, err
	}

	var users []string
	for _, e := range entries {
		if e.Status == StatusOnline && e.User != self {
			users = append(users, e.User)
		}
	}
	return users, nil
}

// presenceHeartbeat republishes the Online marker on a fixed period for
// as long as the application is live. Retained overwrite makes the
// republish idempotent. The loop wakes up frequently so shutdown is not
// delayed by a full heartbeat period.
func presenceHeartbeat(a *App) {
	defer a.wg.Done()

	const pollStep = 100 * time.Millisecond
	interval := a.cfg.heartbeatInterval()

	if err := a.presence.SetStatus(a.user, StatusOnline); err != nil {
		logs.Err.Println("presence: initial online publish failed:", err)
	}

	elapsed := time.Duration(0)
	for a.alive() {
		time.Sleep(pollStep)
		elapsed += pollStep
		if elapsed < interval {
			continue
		}
		elapsed = 0
		if err := a.presence.SetStatus(a.user, StatusOnline); err != nil {
			if errors.Is(err, errMalformedMessage) {
				// Can't happen for a name validated at startup.
				return
			}
			logs.Warn.Println("presence: heartbeat publish failed:", err)
		}
	}
}
