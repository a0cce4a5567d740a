/******************************************************************************
 *
 *  Description :
 *
 *    Group directory: retained full-state descriptors under GROUPS/.
 *    Every change republishes the entire roster. The group's leader is
 *    the only intended writer of a descriptor; two processes mutating
 *    the same group concurrently would race and nothing here prevents
 *    it. Single-writer is the deployment convention.
 *
 *****************************************************************************/

package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/logs"
)

type groupDir struct {
	conn broker.Conn
	wait time.Duration
}

// ListGroups fetches a snapshot of all retained group descriptors.
func (gd *groupDir) ListGroups() ([]GroupDesc, error) {
	msgs, err := gd.conn.Snapshot(groupFilter(), gd.wait)
	if err != nil {
		return nil, err
	}

	var groups []GroupDesc
	for _, m := range msgs {
		g, err := parseGroupDesc(m.Payload)
		if err != nil {
			logs.Warn.Printf("groups: dropping payload on %s: %s", m.Topic, err)
			continue
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

// find returns the current descriptor of one group.
func (gd *groupDir) find(name string) (GroupDesc, error) {
	groups, err := gd.ListGroups()
	if err != nil {
		return GroupDesc{}, err
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return GroupDesc{}, fmt.Errorf("group '%s': %w", name, errNotFound)
}

// LeaderOf returns the leader of a known group.
func (gd *groupDir) LeaderOf(name string) (string, error) {
	g, err := gd.find(name)
	if err != nil {
		return "", err
	}
	return g.Leader, nil
}

// CreateGroup publishes the initial single-member descriptor and records
// a creation event (with the group's conversation link) in the leader's
// history. The name-taken check is a snapshot scan, not an atomic claim;
// two leaders racing to create the same name is a documented limitation.
func (gd *groupDir) CreateGroup(name, leader string, ts time.Time) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := validName(leader); err != nil {
		return "", err
	}

	// Only a definite not-found clears the name; a failed snapshot must
	// not lead to clobbering an existing descriptor.
	if _, err := gd.find(name); err == nil {
		return "", fmt.Errorf("group '%s': %w", name, errAlreadyExists)
	} else if !errors.Is(err, errNotFound) {
		return "", err
	}

	desc := GroupDesc{Name: name, Leader: leader, Members: []string{leader}}
	if err := gd.conn.Publish(groupTopic(name), desc.Encode(), true); err != nil {
		return "", err
	}

	link := groupLink(name, ts)
	event := GroupCreated{Group: name, Link: link}.Encode()
	if err := gd.conn.Publish(historyTopic(leader, event), event, true); err != nil {
		return "", err
	}
	return link, nil
}

// AddMember appends a user to the roster and republishes the full
// descriptor. Adding an existing member is a no-op. Read-modify-write
// with no cross-process lock; only the leader is expected to call this.
func (gd *groupDir) AddMember(name, user string) error {
	if err := validName(user); err != nil {
		return err
	}

	g, err := gd.find(name)
	if err != nil {
		return err
	}
	if g.hasMember(user) {
		return nil
	}

	g.Members = append(g.Members, user)
	return gd.conn.Publish(groupTopic(name), g.Encode(), true)
}
