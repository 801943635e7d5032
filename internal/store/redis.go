package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
)

const maxTxRetries = 5

// RedisStore keeps the settings document under one Redis key. Writers
// update it in a WATCH/MULTI transaction and announce the change on a
// pub/sub channel, so every process sharing the key sees new snapshots.
type RedisStore struct {
	feed

	client     *redis.Client
	ownsClient bool
	key        string
	channel    string

	pubsub *redis.PubSub
	wg     sync.WaitGroup

	// mu orders local writes against listener reloads, so a reload that
	// started before a write cannot publish an older snapshot after it.
	mu sync.Mutex
}

// DialRedisStore connects to url, pings it and opens the store.
func DialRedisStore(ctx context.Context, url, key, channel string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	s, err := NewRedisStore(ctx, client, key, channel)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// NewRedisStore loads the current document from client and starts
// listening for change announcements. The caller keeps ownership of client.
func NewRedisStore(ctx context.Context, client *redis.Client, key, channel string) (*RedisStore, error) {
	s := &RedisStore{client: client, key: key, channel: channel}

	templates, err := s.load(ctx, client)
	if err != nil {
		return nil, err
	}
	warnInvalid(templates)
	s.publish(templates)

	s.pubsub = client.Subscribe(ctx, channel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		s.pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	s.wg.Add(1)
	go s.listen(s.pubsub.Channel())

	appLog.Info("template store opened", "driver", "redis", "key", key, "templates", len(templates))
	return s, nil
}

func (s *RedisStore) listen(ch <-chan *redis.Message) {
	defer s.wg.Done()
	for range ch {
		s.reload()
	}
}

func (s *RedisStore) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	templates, err := s.load(ctx, s.client)
	if err != nil {
		appLog.Error("template store reload failed", err, "key", s.key)
		return
	}
	s.publish(templates)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter) ([]model.ShiftTemplate, error) {
	data, err := c.Get(ctx, s.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	return decodeDocument(data)
}

func (s *RedisStore) Upsert(ctx context.Context, t model.ShiftTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(templates []model.ShiftTemplate) []model.ShiftTemplate {
		return upserted(templates, t)
	}, "template saved", "id", t.ID, "summary", t.Summary)
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	return s.update(ctx, func(templates []model.ShiftTemplate) []model.ShiftTemplate {
		return removed(templates, id)
	}, "template removed", "id", id)
}

// update applies change to the stored document optimistically, retrying
// when another writer touched the key in between.
func (s *RedisStore) update(ctx context.Context, change func([]model.ShiftTemplate) []model.ShiftTemplate, msg string, kv ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []model.ShiftTemplate
	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		next = change(current)
		data, err := encodeDocument(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			pipe.Publish(ctx, s.channel, "changed")
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			appLog.Debug("template store write conflict, retrying", "key", s.key, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return err
		}
		s.publish(next)
		appLog.Info(msg, kv...)
		return nil
	}
	return fmt.Errorf("updating %s: too many concurrent writers", s.key)
}

// Close stops the change listener and, if the store dialed the
// connection itself, closes the client.
func (s *RedisStore) Close() error {
	err := s.pubsub.Close()
	s.wg.Wait()
	if s.ownsClient {
		if cerr := s.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
