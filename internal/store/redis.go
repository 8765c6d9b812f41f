package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"worklog/api/internal/document"
	"worklog/api/internal/logging"
)

const redisPrefix = "worklog:document:"

// RedisStore keeps the document under one key and publishes every write on a per-document channel.
type RedisStore struct {
	client     *redis.Client
	documentID string
}

func NewRedisStore(ctx context.Context, redisURL, documentID string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, documentID), nil
}

func NewRedisStoreWithClient(client *redis.Client, documentID string) *RedisStore {
	return &RedisStore{client: client, documentID: documentID}
}

func (s *RedisStore) key() string {
	return redisPrefix + s.documentID
}

func (s *RedisStore) channel() string {
	return redisPrefix + s.documentID + ":changes"
}

func (s *RedisStore) Read(ctx context.Context) (document.Document, error) {
	payload, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return document.Document{}, ErrNotFound
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("read document: %w", err)
	}
	return document.Decode(payload)
}

func (s *RedisStore) Write(ctx context.Context, doc document.Document) error {
	payload, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(), payload, 0).Err(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel(), s.documentID).Err(); err != nil {
		return fmt.Errorf("publish document change: %w", err)
	}
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, onChange func(document.Document)) (*Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}

	return StartSubscription(ctx, func(ctx context.Context) error {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-messages:
				if !ok {
					return errors.New("redis subscription closed")
				}
				// Messages are only a signal. The key is re-read so a late message never
				// delivers a state older than what is stored.
				if msg.Payload != s.documentID {
					continue
				}
				doc, err := s.Read(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logging.Warn("change feed read failed", "document_id", s.documentID, "error", err)
					continue
				}
				onChange(doc)
			}
		}
	}), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
