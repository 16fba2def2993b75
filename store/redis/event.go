package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
)

// Script results.
const (
	putOK            = 0
	putDuplicateID   = 1
	putDuplicateIdem = 2
)

// putScript writes an event atomically.
//
//	KEYS[1] event key, KEYS[2] stream sorted set, KEYS[3] idempotency key (optional)
//	ARGV[1] event ID,  ARGV[2] event JSON
var putScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 1
end
if KEYS[3] and redis.call('EXISTS', KEYS[3]) == 1 then
	return 2
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], 0, ARGV[1])
if KEYS[3] then
	redis.call('SET', KEYS[3], ARGV[1])
end
return 0
`)

// PutEvent stores the event, its stream index entry and its idempotency
// binding in one script execution.
func (s *Store) PutEvent(ctx context.Context, evt *event.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("catcher/redis: marshal event: %w", err)
	}

	str := evt.Stream()
	evtID := evt.ID.String()
	keys := []string{s.keys.event(str, evtID), s.keys.stream(str)}
	if evt.IdempotencyKey != "" {
		keys = append(keys, s.keys.idem(str, evt.IdempotencyKey))
	}

	res, err := putScript.Run(ctx, s.rdb, keys, evtID, raw).Int()
	if err != nil {
		return unavailable("put event", err)
	}
	switch res {
	case putOK:
		return nil
	case putDuplicateID:
		return catcher.ErrDuplicateEvent
	case putDuplicateIdem:
		return catcher.ErrDuplicateIdempotencyKey
	default:
		return fmt.Errorf("catcher/redis: put event: unexpected script result %d", res)
	}
}

// GetEvent returns an event by stream and ID.
func (s *Store) GetEvent(ctx context.Context, str event.Stream, evtID id.ID) (*event.Event, error) {
	raw, err := s.rdb.Get(ctx, s.keys.event(str, evtID.String())).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return nil, catcher.ErrEventNotFound
		}
		return nil, unavailable("get event", err)
	}
	return decodeEvent(raw)
}

// GetEventByIdempotencyKey returns the event an idempotency key is bound to.
func (s *Store) GetEventByIdempotencyKey(ctx context.Context, str event.Stream, key string) (*event.Event, error) {
	evtID, err := s.rdb.Get(ctx, s.keys.idem(str, key)).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, catcher.ErrEventNotFound
		}
		return nil, unavailable("get idempotency key", err)
	}
	parsed, err := id.ParseEventID(evtID)
	if err != nil {
		return nil, fmt.Errorf("catcher/redis: idempotency key %q: %w", key, err)
	}
	return s.GetEvent(ctx, str, parsed)
}

// ScanEvents pages through the stream's sorted set by lexicographic range.
func (s *Store) ScanEvents(ctx context.Context, str event.Stream, opts event.ScanOpts) ([]*event.Event, error) {
	if opts.Limit <= 0 {
		return []*event.Event{}, nil
	}

	lower := "-"
	if opts.After != "" {
		lower = "(" + opts.After
	}
	ids, err := s.rdb.ZRangeByLex(ctx, s.keys.stream(str), &goredis.ZRangeBy{
		Min:   lower,
		Max:   "+",
		Count: int64(opts.Limit),
	}).Result()
	if err != nil {
		return nil, unavailable("scan stream", err)
	}
	if len(ids) == 0 {
		return []*event.Event{}, nil
	}

	entityKeys := make([]string, len(ids))
	for i, evtID := range ids {
		entityKeys[i] = s.keys.event(str, evtID)
	}
	values, err := s.rdb.MGet(ctx, entityKeys...).Result()
	if err != nil {
		return nil, unavailable("load events", err)
	}

	result := make([]*event.Event, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entries are only written together with their record.
			continue
		}
		evt, err := decodeEvent([]byte(raw))
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

func decodeEvent(raw []byte) (*event.Event, error) {
	var evt event.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("catcher/redis: unmarshal event: %w", err)
	}
	return &evt, nil
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}
