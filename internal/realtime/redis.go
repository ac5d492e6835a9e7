package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/parlatext/parlatext/internal/logger"
)

// channelPrefix namespaces per-job update channels on the broker
const channelPrefix = "jobs:update:"

// updateBuffer bounds how many validated updates can queue before the
// reader loop blocks
const updateBuffer = 64

// RedisSubscriber receives job updates over Redis pub/sub, one channel per
// job id.
type RedisSubscriber struct {
	rdb     *redis.Client
	pubsub  *redis.PubSub
	updates chan Update

	mu      sync.Mutex
	current map[string]struct{}
	closed  bool
}

var _ Subscriber = &RedisSubscriber{}

// NewRedisSubscriber connects to the broker at redisURL and starts the
// receive loop. No channels are subscribed until the first Subscribe call.
func NewRedisSubscriber(ctx context.Context, redisURL string) (*RedisSubscriber, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	s := &RedisSubscriber{
		rdb:     redis.NewClient(opt),
		updates: make(chan Update, updateBuffer),
		current: make(map[string]struct{}),
	}
	s.pubsub = s.rdb.Subscribe(ctx)

	go s.receive()
	return s, nil
}

// Subscribe replaces the subscribed id set, diffing against the current one
// so unchanged channels stay subscribed.
func (s *RedisSubscriber) Subscribe(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	var added, removed []string
	for id := range next {
		if _, ok := s.current[id]; !ok {
			added = append(added, channelPrefix+id)
		}
	}
	for id := range s.current {
		if _, ok := next[id]; !ok {
			removed = append(removed, channelPrefix+id)
		}
	}

	if len(added) > 0 {
		if err := s.pubsub.Subscribe(ctx, added...); err != nil {
			return err
		}
	}
	if len(removed) > 0 {
		if err := s.pubsub.Unsubscribe(ctx, removed...); err != nil {
			return err
		}
	}

	s.current = next
	logger.DebugWithFields("realtime subscription updated", map[string]interface{}{
		"active": len(next),
	})
	return nil
}

// Updates returns the channel validated updates arrive on
func (s *RedisSubscriber) Updates() <-chan Update {
	return s.updates
}

// Close tears down the pub/sub connection; receive drains and closes the
// updates channel.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.pubsub.Close()
	if cerr := s.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}

// receive forwards broker messages as validated updates until the pub/sub
// connection closes. Malformed payloads and updates for ids that slipped in
// after an unsubscribe are logged and dropped; a dropped push is never
// user-visible and the next poll corrects the list.
func (s *RedisSubscriber) receive() {
	defer close(s.updates)

	for msg := range s.pubsub.Channel() {
		update := ParseUpdate([]byte(msg.Payload))
		if update.Kind == KindMalformed {
			logger.WarnWithFields("dropping malformed realtime payload", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}

		s.mu.Lock()
		_, active := s.current[update.JobID]
		s.mu.Unlock()
		if !active {
			logger.Debugf("dropping realtime update for inactive job %s", update.JobID)
			continue
		}

		s.updates <- update
	}
}
