package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/domain"
)

const DefaultChannel = "habibeat:daily_entries"

// RedisFeed broadcasts entry changes between server instances over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
	source  string
}

func NewRedisFeed(client *redis.Client, channel, source string) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{client: client, channel: channel, source: source}
}

func (f *RedisFeed) Publish(ctx context.Context, change domain.EntryChange) error {
	if change.Source == "" {
		change.Source = f.source
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, handle func(domain.EntryChange)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("feed subscription closed")
			}
			var change domain.EntryChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Error().Err(err).Str("channel", f.channel).Msg("failed to decode entry change")
				continue
			}
			handle(change)
		}
	}
}
