package redis

import "github.com/xraph/catcher/event"

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "catcher"

// Key layout. The stream key is wrapped in a hash tag so every key of one
// stream lands in the same cluster slot and the write script stays atomic.
//
//	{prefix}:evt:{tenant:target}:{eventID}   -> event JSON
//	{prefix}:z:{tenant:target}               -> sorted set of event IDs, score 0
//	{prefix}:u:idem:{tenant:target}:{key}    -> event ID
type keys struct {
	prefix string
}

func (k keys) tag(str event.Stream) string {
	return "{" + str.Key() + "}"
}

func (k keys) event(str event.Stream, evtID string) string {
	return k.prefix + ":evt:" + k.tag(str) + ":" + evtID
}

func (k keys) stream(str event.Stream) string {
	return k.prefix + ":z:" + k.tag(str)
}

func (k keys) idem(str event.Stream, key string) string {
	return k.prefix + ":u:idem:" + k.tag(str) + ":" + key
}
