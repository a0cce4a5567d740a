package broker

import "strings"

// MatchTopic reports whether a topic matches a subscription filter using
// MQTT wildcard rules: '+' matches exactly one level, a trailing '#'
// matches any number of remaining levels.
func MatchTopic(filter, topic string) bool {
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")

	for i, fp := range fparts {
		if fp == "#" {
			return true
		}
		if i >= len(tparts) {
			return false
		}
		if fp != "+" && fp != tparts[i] {
			return false
		}
	}
	return len(fparts) == len(tparts)
}
