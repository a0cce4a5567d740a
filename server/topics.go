/******************************************************************************
 *
 *  Description :
 *
 *    Topic namespace of the signaling layer. Pure naming convention,
 *    shared by every deployed client:
 *
 *      USERS/<user>                       retained presence
 *      GROUPS/<group>                     retained group descriptor
 *      <user>_Control                     live inbound requests/responses
 *      <user>_Control/REQUESTS/<payload>  retained per-request mirror
 *      <user>_Control/HISTORY/<payload>   retained per-event history
 *      CHATS/<link>                       conversation topic
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"strings"
	"time"
)

const (
	usersPrefix   = "USERS"
	groupsPrefix  = "GROUPS"
	chatsPrefix   = "CHATS"
	controlSuffix = "_Control"

	// Retained placeholder on a fresh 1:1 chat topic until the
	// requester's side joins.
	waitingSentinel = "WAITING_USER"
)

// Characters that can never appear in user or group names: topic level
// separators, subscription wildcards and the payload field separators.
const invalidNameChars = ":/+#;|"

// validName rejects empty or whitespace-only names and names carrying
// any separator or wildcard character. Checked before any publish.
func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: blank name", errMalformedMessage)
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return fmt.Errorf("%w: name '%s' contains one of '%s'", errMalformedMessage, name, invalidNameChars)
	}
	return nil
}

func presenceTopic(user string) string {
	return usersPrefix + "/" + user
}

func presenceFilter() string {
	return usersPrefix + "/+"
}

func groupTopic(group string) string {
	return groupsPrefix + "/" + group
}

func groupFilter() string {
	return groupsPrefix + "/+"
}

func controlTopic(user string) string {
	return user + controlSuffix
}

func requestMirrorTopic(user, payload string) string {
	return controlTopic(user) + "/REQUESTS/" + payload
}

func requestMirrorFilter(user string) string {
	return controlTopic(user) + "/REQUESTS/#"
}

func historyTopic(user, payload string) string {
	return controlTopic(user) + "/HISTORY/" + payload
}

func historyFilter(user string) string {
	return controlTopic(user) + "/HISTORY/#"
}

func chatTopic(link string) string {
	return chatsPrefix + "/" + link
}

// userLink derives the conversation link of a 1:1 chat:
// "<requester>_<responder>|<timestamp>", datestamped at acceptance.
// Both parties converge on the same link from the acceptance message.
func userLink(requester, responder string, ts time.Time) string {
	return fmt.Sprintf("%s_%s|%d", requester, responder, ts.Unix())
}

// groupLink derives the conversation link of a group chat created at ts.
func groupLink(group string, ts time.Time) string {
	return fmt.Sprintf("%s|%d", group, ts.Unix())
}
