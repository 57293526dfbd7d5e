// Package notifications delivers engagement events to Redis, Kafka and
// connected WebSocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"agora/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const postChannelPrefix = "engagement:post:"

// PostHandler receives the raw JSON of an event published for postID.
type PostHandler func(postID uint, payload []byte)

// Notifier fans engagement events out across API instances over Redis
// pub/sub, one channel per post. A nil client turns it into a no-op.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) Name() string { return "redis" }

// Publish sends ev to the channel of the post it concerns.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, PostChannel(ev.PostID), payload).Err()
}

// Subscribe listens on every post channel until ctx is cancelled. It returns
// once Redis has confirmed the subscription, so publishes made after it
// returns are delivered.
func (n *Notifier) Subscribe(ctx context.Context, handle PostHandler) error {
	if n.rdb == nil {
		return nil
	}
	pattern := postChannelPrefix + "*"
	sub := n.rdb.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	go n.consume(ctx, sub, handle)
	return nil
}

func (n *Notifier) consume(ctx context.Context, sub *redis.PubSub, handle PostHandler) {
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			postID, ok := parsePostChannel(msg.Channel)
			if !ok {
				middleware.Logger.Warn("ignoring message on unexpected channel", slog.String("channel", msg.Channel))
				continue
			}
			dispatch(handle, postID, []byte(msg.Payload))
		}
	}
}

// dispatch keeps a panicking handler from killing the subscription.
func dispatch(handle PostHandler, postID uint, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in event subscriber",
				slog.Any("panic", r),
				slog.Uint64("post_id", uint64(postID)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	handle(postID, payload)
}

// PostChannel derives the Redis channel name for a post.
func PostChannel(postID uint) string {
	return postChannelPrefix + strconv.FormatUint(uint64(postID), 10)
}

func parsePostChannel(channel string) (uint, bool) {
	rest, found := strings.CutPrefix(channel, postChannelPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
